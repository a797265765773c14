// Package delay implements the deferred order cancellation channel on Kafka.
//
// ScheduleCancel publishes {order_id, cancel_at} to a delay topic; Worker
// consumes it in a consumer group, sleeps until the due time, invokes the
// cancel handler, and commits the offset only on success. Messages all carry
// the same TTL, so waiting on the head of the partition never starves a later
// message. Redelivery after a crash gives at-least-once; the handler's
// PENDING-only guard absorbs duplicates.
//
// An in-process timer would not survive restarts and would fire on the wrong
// replica; the broker carries both the message and the consumer's progress.
package delay

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/kafkax"
	"github.com/beatgrid/order-service/internal/orders"
)

type CancelMessage struct {
	OrderID  string    `json:"order_id"`
	CancelAt time.Time `json:"cancel_at"`
}

// Scheduler publishes delayed-cancel messages. The write is synchronous with
// full acks: losing it would mean an order that never times out.
type Scheduler struct {
	Writer *kafkago.Writer
}

func NewScheduler(brokers []string) *Scheduler {
	return &Scheduler{
		Writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        orders.TopicOrderCancelDelay,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (s *Scheduler) ScheduleCancel(ctx context.Context, orderID string, ttl time.Duration) error {
	msg := CancelMessage{OrderID: orderID, CancelAt: time.Now().UTC().Add(ttl)}
	return s.Writer.WriteMessages(ctx, kafkago.Message{
		Key:   orders.PartitionKey(orderID),
		Value: kafkax.MustMarshal(msg),
		Time:  time.Now(),
	})
}

func (s *Scheduler) Close() error { return s.Writer.Close() }

// CancelFunc executes the timeout cancellation for one order. It must be
// idempotent: the transport delivers at least once.
type CancelFunc func(ctx context.Context, orderID string) error

type Worker struct {
	Consumer *kafkax.Consumer
	Log      *zap.Logger
	Cancel   CancelFunc
}

func (w *Worker) Run(ctx context.Context) error {
	return w.Consumer.Start(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, m kafkago.Message) error {
	var msg CancelMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		// malformed message: log and commit, redelivery cannot fix it
		w.Log.Error("bad cancel message", zap.ByteString("value", m.Value), zap.Error(err))
		return nil
	}

	if wait := time.Until(msg.CancelAt); wait > 0 {
		select {
		case <-ctx.Done():
			// not committed; redelivered to the next consumer
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	w.Log.Info("order timeout reached", zap.String("order_id", msg.OrderID))
	return w.Cancel(ctx, msg.OrderID)
}
