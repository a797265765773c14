package delay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cancelRecorder struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (c *cancelRecorder) cancel(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.orders = append(c.orders, orderID)
	return nil
}

func message(t *testing.T, orderID string, cancelAt time.Time) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(CancelMessage{OrderID: orderID, CancelAt: cancelAt})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(orderID), Value: b}
}

func TestWorkerHandle(t *testing.T) {
	t.Run("due message cancels immediately", func(t *testing.T) {
		rec := &cancelRecorder{}
		w := &Worker{Log: zap.NewNop(), Cancel: rec.cancel}

		err := w.handle(context.Background(), message(t, "order-1", time.Now().Add(-time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, []string{"order-1"}, rec.orders)
	})

	t.Run("future message waits for the due time", func(t *testing.T) {
		rec := &cancelRecorder{}
		w := &Worker{Log: zap.NewNop(), Cancel: rec.cancel}

		start := time.Now()
		err := w.handle(context.Background(), message(t, "order-1", start.Add(50*time.Millisecond)))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Equal(t, []string{"order-1"}, rec.orders)
	})

	t.Run("shutdown while waiting returns uncommitted", func(t *testing.T) {
		rec := &cancelRecorder{}
		w := &Worker{Log: zap.NewNop(), Cancel: rec.cancel}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := w.handle(ctx, message(t, "order-1", time.Now().Add(time.Hour)))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, rec.orders)
	})

	t.Run("malformed payload is dropped, not retried", func(t *testing.T) {
		rec := &cancelRecorder{}
		w := &Worker{Log: zap.NewNop(), Cancel: rec.cancel}

		err := w.handle(context.Background(), kafkago.Message{Value: []byte("not json")})
		require.NoError(t, err)
		assert.Empty(t, rec.orders)
	})

	t.Run("cancel failure propagates for redelivery", func(t *testing.T) {
		rec := &cancelRecorder{err: errors.New("db down")}
		w := &Worker{Log: zap.NewNop(), Cancel: rec.cancel}

		err := w.handle(context.Background(), message(t, "order-1", time.Now().Add(-time.Second)))
		assert.Error(t, err)
	})
}
