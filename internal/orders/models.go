package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string
	UserID      int64
	TotalAmount decimal.Decimal
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
}

// OrderItem snapshots one cart line at creation time. Price never changes
// afterwards, even if the catalog price does. Synced flips to true once the
// downstream purchase record is confirmed.
type OrderItem struct {
	ID        int64
	OrderID   string
	TrackID   int64
	License   string
	Price     decimal.Decimal
	Synced    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is the order shape returned to API callers.
type View struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	Items       []ItemView      `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ItemView struct {
	ID      int64           `json:"id,omitempty"`
	TrackID int64           `json:"track_id"`
	License string          `json:"license"`
	Price   decimal.Decimal `json:"price"`
}

func (o Order) view(items []OrderItem) *View {
	ivs := make([]ItemView, 0, len(items))
	for _, it := range items {
		ivs = append(ivs, ItemView{ID: it.ID, TrackID: it.TrackID, License: it.License, Price: it.Price})
	}
	return &View{
		ID:          o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		Items:       ivs,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
