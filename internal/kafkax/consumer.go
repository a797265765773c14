package kafkax

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message was fully processed and its
// offset may be committed. A failing handler is retried in place; the group
// offset never advances past a message that has not been handled yet.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r          *kafka.Reader
	workers    int
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, retryDelay: time.Second, log: log}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	handled := make(chan kafka.Message, 1024)
	tracker := newOffsetTracker()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx, h, jobs, handled)
		}()
	}

	committerDone := make(chan struct{})
	go func() {
		defer close(committerDone)
		for m := range handled {
			last, ok := tracker.complete(m)
			if !ok {
				continue
			}
			if err := c.r.CommitMessages(ctx, last); err != nil {
				// uncommitted successes are redelivered; handlers absorb that
				c.log.Warn("offset commit failed", zap.Error(err))
			}
		}
	}()

	var readErr error
loop:
	for {
		// FetchMessage, not ReadMessage: the latter commits on read when a
		// group ID is set, which would break commit-after-success.
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				readErr = err
			}
			break
		}
		tracker.add(m)
		select {
		case jobs <- m:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
	close(handled)
	<-committerDone
	return readErr
}

// work retries each message until the handler accepts it or the context ends.
// Only handled messages reach the committer.
func (c *Consumer) work(ctx context.Context, h Handler, jobs <-chan kafka.Message, handled chan<- kafka.Message) {
	for m := range jobs {
		for {
			err := h(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("handler failed, retrying",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
		select {
		case handled <- m:
		case <-ctx.Done():
			return
		}
	}
}

// offsetTracker orders commits. With several workers on one partition,
// committing a later offset would implicitly commit every earlier one, so a
// partition's offset only advances over the contiguous prefix of handled
// messages. A message still being retried is redelivered after a crash even
// when later offsets finished first.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[int]*partitionWindow
}

type partitionWindow struct {
	inflight []kafka.Message // fetch order
	handled  map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: map[int]*partitionWindow{}}
}

func (t *offsetTracker) add(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.parts[m.Partition]
	if p == nil {
		p = &partitionWindow{handled: map[int64]bool{}}
		t.parts[m.Partition] = p
	}
	p.inflight = append(p.inflight, m)
}

// complete marks m handled. When the partition's committable prefix advanced,
// it returns the newest message of that prefix and true.
func (t *offsetTracker) complete(m kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.parts[m.Partition]
	if p == nil {
		return kafka.Message{}, false
	}
	p.handled[m.Offset] = true

	var last kafka.Message
	n := 0
	for n < len(p.inflight) && p.handled[p.inflight[n].Offset] {
		last = p.inflight[n]
		delete(p.handled, p.inflight[n].Offset)
		n++
	}
	if n == 0 {
		return kafka.Message{}, false
	}
	p.inflight = p.inflight[n:]
	return last, true
}
