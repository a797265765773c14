package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/cart"
	"github.com/beatgrid/order-service/internal/catalog"
	"github.com/beatgrid/order-service/internal/config"
	"github.com/beatgrid/order-service/internal/delay"
	"github.com/beatgrid/order-service/internal/httpx"
	"github.com/beatgrid/order-service/internal/kafkax"
	"github.com/beatgrid/order-service/internal/locks"
	"github.com/beatgrid/order-service/internal/metrics"
	"github.com/beatgrid/order-service/internal/orders"
	"github.com/beatgrid/order-service/internal/postgres"
	"github.com/beatgrid/order-service/internal/redisx"
)

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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis: cart hashes + track locks
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka: projection feed (async) + delayed cancel (sync, acked)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024)
	prod.Start(ctx)
	scheduler := delay.NewScheduler(cfg.KafkaBrokers)
	defer scheduler.Close()

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL)

	coord := &orders.Coordinator{
		Cart:      &cart.Store{Redis: rdb},
		Locks:     locks.NewRedisLocker(rdb, cfg.LockWait, cfg.LockHold),
		Validator: &catalog.Validator{Tracks: catalogClient},
		Repo:      &orders.Repo{DB: db},
		Scheduler: scheduler,
		Notifier:  catalogClient,
		Producer:  prod,
		Log:       logger,
		TTL:       cfg.OrderTTL,
		Service:   cfg.ServiceName,
	}

	m := metrics.NewServerMetrics("order_api")
	router := httpx.NewRouter(m)
	(&httpx.CartHandler{Store: &cart.Store{Redis: rdb}, Log: logger}).Register(router)
	(&httpx.OrdersHandler{Svc: coord, Log: logger, Metrics: m}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // flush remaining events
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
