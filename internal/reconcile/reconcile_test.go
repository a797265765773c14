package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/orders"
)

type fakeRepo struct {
	items   []orders.UnsyncedItem
	listErr error
	markErr map[int64]error
	marked  []int64
}

func (f *fakeRepo) ListUnsyncedPaidItems(ctx context.Context, limit int) ([]orders.UnsyncedItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeRepo) MarkItemSynced(ctx context.Context, itemID int64) error {
	if err := f.markErr[itemID]; err != nil {
		return err
	}
	f.marked = append(f.marked, itemID)
	return nil
}

type fakeNotifier struct {
	errByTrack map[int64]error
	confirmed  []int64
}

func (f *fakeNotifier) ConfirmPurchase(ctx context.Context, trackID, userID int64, pricePaid decimal.Decimal) error {
	if err := f.errByTrack[trackID]; err != nil {
		return err
	}
	f.confirmed = append(f.confirmed, trackID)
	return nil
}

func unsynced(itemID, trackID, userID int64) orders.UnsyncedItem {
	return orders.UnsyncedItem{
		ItemID:  itemID,
		OrderID: "order-1",
		TrackID: trackID,
		UserID:  userID,
		Price:   decimal.RequireFromString("9.99"),
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms and marks every item", func(t *testing.T) {
		repo := &fakeRepo{items: []orders.UnsyncedItem{unsynced(1, 42, 7), unsynced(2, 43, 7)}}
		notifier := &fakeNotifier{}
		r := &Reconciler{Repo: repo, Notifier: notifier, Log: zap.NewNop()}

		n, err := r.Sweep(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []int64{42, 43}, notifier.confirmed)
		assert.Equal(t, []int64{1, 2}, repo.marked)
	})

	t.Run("a failing confirm skips only that item", func(t *testing.T) {
		repo := &fakeRepo{items: []orders.UnsyncedItem{unsynced(1, 42, 7), unsynced(2, 43, 7)}}
		notifier := &fakeNotifier{errByTrack: map[int64]error{42: errors.New("still down")}}
		r := &Reconciler{Repo: repo, Notifier: notifier, Log: zap.NewNop()}

		n, err := r.Sweep(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []int64{2}, repo.marked)
	})

	t.Run("mark failure leaves the item for the next sweep", func(t *testing.T) {
		repo := &fakeRepo{
			items:   []orders.UnsyncedItem{unsynced(1, 42, 7)},
			markErr: map[int64]error{1: errors.New("db down")},
		}
		r := &Reconciler{Repo: repo, Notifier: &fakeNotifier{}, Log: zap.NewNop()}

		n, err := r.Sweep(ctx, 100)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("list failure aborts the sweep", func(t *testing.T) {
		repo := &fakeRepo{listErr: errors.New("db down")}
		r := &Reconciler{Repo: repo, Notifier: &fakeNotifier{}, Log: zap.NewNop()}

		_, err := r.Sweep(ctx, 100)
		assert.Error(t, err)
	})

	t.Run("respects the batch limit", func(t *testing.T) {
		repo := &fakeRepo{items: []orders.UnsyncedItem{unsynced(1, 42, 7), unsynced(2, 43, 7)}}
		notifier := &fakeNotifier{}
		r := &Reconciler{Repo: repo, Notifier: notifier, Log: zap.NewNop()}

		n, err := r.Sweep(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
