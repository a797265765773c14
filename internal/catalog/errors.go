package catalog

import "errors"

var (
	// ErrTrackNotAvailable: track missing, removed, or not published.
	ErrTrackNotAvailable = errors.New("track not available")

	// ErrOutOfStock: exclusive license with no remaining stock.
	ErrOutOfStock = errors.New("exclusive license sold out")

	// ErrPriceChanged: catalog price no longer matches the cart snapshot.
	ErrPriceChanged = errors.New("track price changed")

	// ErrUnavailable: the catalog service itself could not be reached;
	// safe for the caller to retry.
	ErrUnavailable = errors.New("catalog unavailable")
)
