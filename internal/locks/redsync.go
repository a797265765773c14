package locks

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const retryDelay = 100 * time.Millisecond

// RedisLocker implements Locker with redsync mutexes over the shared Redis
// client. Wait bounds how long TryAcquire retries; Hold is the mutex expiry,
// the safety net if the holder dies before releasing.
type RedisLocker struct {
	rs   *redsync.Redsync
	Wait time.Duration
	Hold time.Duration
}

func NewRedisLocker(client *redis.Client, wait, hold time.Duration) *RedisLocker {
	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		Wait: wait,
		Hold: hold,
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Lease, error) {
	tries := int(l.Wait/retryDelay) + 1
	m := l.rs.NewMutex(key,
		redsync.WithExpiry(l.Hold),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	ctx, cancel := context.WithTimeout(ctx, l.Wait)
	defer cancel()

	if err := m.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotAcquired
		}
		return nil, err
	}
	return &redisLease{key: key, m: m}, nil
}

type redisLease struct {
	key string
	m   *redsync.Mutex
}

func (l *redisLease) Key() string { return l.key }

func (l *redisLease) Release(ctx context.Context) error {
	_, err := l.m.UnlockContext(ctx)
	return err
}
