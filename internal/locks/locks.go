// Package locks provides named mutual-exclusion leases for exclusive-license
// checkouts. The backing service is abstracted behind Locker so tests (and any
// future consensus-backed implementation) can substitute their own.
package locks

import (
	"context"
	"errors"
	"fmt"

	"github.com/beatgrid/order-service/internal/redisx"
)

// ErrNotAcquired means the lease could not be taken within the wait window.
var ErrNotAcquired = errors.New("lock not acquired")

// Lease is a held lock. Release is safe to call once; after the hold timeout
// the backing store expires the lease on its own.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

type Locker interface {
	// TryAcquire waits up to the configured wait timeout for the named
	// lease. ErrNotAcquired reports contention; other errors are
	// transient backend failures.
	TryAcquire(ctx context.Context, key string) (Lease, error)
}

// TrackKey names the lease guarding one exclusive track.
func TrackKey(trackID int64) string {
	return fmt.Sprintf(redisx.KeyTrackLock, trackID)
}
