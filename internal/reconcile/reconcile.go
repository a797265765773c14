// Package reconcile sweeps PAID orders whose purchase records were never
// confirmed downstream (the best-effort sync after payment can fail) and
// re-drives the idempotent confirm call until they are.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/orders"
)

type Repository interface {
	ListUnsyncedPaidItems(ctx context.Context, limit int) ([]orders.UnsyncedItem, error)
	MarkItemSynced(ctx context.Context, itemID int64) error
}

type Notifier interface {
	ConfirmPurchase(ctx context.Context, trackID, userID int64, pricePaid decimal.Decimal) error
}

type Reconciler struct {
	Repo     Repository
	Notifier Notifier
	Log      *zap.Logger
	Interval time.Duration
	Batch    int
}

func (r *Reconciler) Run(ctx context.Context) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := r.Sweep(ctx, batch); err != nil {
				r.Log.Warn("reconcile sweep failed", zap.Error(err))
			} else if n > 0 {
				r.Log.Info("reconciled purchase records", zap.Int("count", n))
			}
		}
	}
}

// Sweep confirms up to limit unsynced items and returns how many succeeded.
func (r *Reconciler) Sweep(ctx context.Context, limit int) (int, error) {
	items, err := r.Repo.ListUnsyncedPaidItems(ctx, limit)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, it := range items {
		if err := r.Notifier.ConfirmPurchase(ctx, it.TrackID, it.UserID, it.Price); err != nil {
			r.Log.Warn("purchase confirm still failing",
				zap.String("order_id", it.OrderID),
				zap.Int64("track_id", it.TrackID),
				zap.Error(err))
			continue
		}
		if err := r.Repo.MarkItemSynced(ctx, it.ItemID); err != nil {
			r.Log.Warn("mark synced failed", zap.Int64("item_id", it.ItemID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}
