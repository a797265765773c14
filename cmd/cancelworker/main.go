package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/catalog"
	"github.com/beatgrid/order-service/internal/config"
	"github.com/beatgrid/order-service/internal/delay"
	"github.com/beatgrid/order-service/internal/kafkax"
	"github.com/beatgrid/order-service/internal/orders"
	"github.com/beatgrid/order-service/internal/postgres"
	"github.com/beatgrid/order-service/internal/reconcile"
)

// cancelworker closes out orders that were never paid within their TTL and
// re-drives purchase-record syncs that failed after payment.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	repo := &orders.Repo{DB: db}
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL)

	// timeout cancellations feed the same projection stream as the API
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 256)
	prod.Start(ctx)

	coord := &orders.Coordinator{
		Repo:     repo,
		Producer: prod,
		Log:      logger,
		Service:  cfg.ServiceName + "-cancel",
	}

	worker := &delay.Worker{
		Consumer: kafkax.NewConsumer(cfg.KafkaBrokers, cfg.CancelGroup, orders.TopicOrderCancelDelay, cfg.CancelWorkers, logger),
		Log:      logger,
		Cancel:   coord.Cancel,
	}

	go func() {
		logger.Info("cancel worker started",
			zap.String("group", cfg.CancelGroup),
			zap.String("topic", orders.TopicOrderCancelDelay),
			zap.Int("workers", cfg.CancelWorkers))
		if err := worker.Run(ctx); err != nil {
			logger.Error("cancel worker exit", zap.Error(err))
			cancel()
		}
	}()

	rec := &reconcile.Reconciler{
		Repo:     repo,
		Notifier: catalogClient,
		Log:      logger,
		Interval: cfg.ReconcileInterval,
	}
	go rec.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down cancel worker")
	cancel()
	time.Sleep(500 * time.Millisecond) // let the consumer finish in-flight work
	prod.Close()
	prod.WaitClosed()
}
