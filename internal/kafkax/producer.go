package kafkax

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w        *kafka.Writer
	inbox    chan kafka.Message
	closeCh  chan struct{}
	stopOnce sync.Once
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the flush loop. It exits after Close or context cancellation,
// draining buffered messages either way; callers may trigger both in any
// order during shutdown.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer p.w.Close()
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					_ = p.w.WriteMessages(context.Background(), m)
				}
				return
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				_ = p.w.WriteMessages(context.Background(), m)
			}
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages; the loop flushes what is left and exits.
// Idempotent, and safe alongside cancellation of the Start context.
func (p *Producer) Close() { p.stopOnce.Do(func() { close(p.inbox) }) }

// WaitClosed blocks until the flush loop has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
