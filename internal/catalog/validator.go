package catalog

import (
	"context"
	"fmt"

	"github.com/beatgrid/order-service/internal/cart"
)

// Validator checks a cart line against the catalog of record at checkout
// time. All failures name the offending track so the user knows which line
// to fix.
type Validator struct {
	Tracks TrackGetter
}

type TrackGetter interface {
	GetTrack(ctx context.Context, trackID int64) (*Track, error)
}

func (v *Validator) Validate(ctx context.Context, item cart.Item) error {
	t, err := v.Tracks.GetTrack(ctx, item.TrackID)
	if err != nil {
		return fmt.Errorf("track %q: %w", item.Title, err)
	}

	if t.Status != StatusPublished {
		return fmt.Errorf("track %q: %w", item.Title, ErrTrackNotAvailable)
	}

	// nil stock means unlimited; only exclusive licenses consume stock.
	if item.License == cart.LicenseExclusive && t.Stock != nil && *t.Stock <= 0 {
		return fmt.Errorf("track %q: %w", item.Title, ErrOutOfStock)
	}

	if !t.Price.Equal(item.Price) {
		return fmt.Errorf("track %q: cart price %s, catalog price %s: %w",
			item.Title, item.Price, t.Price, ErrPriceChanged)
	}
	return nil
}
