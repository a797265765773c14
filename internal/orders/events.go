package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type EventItem struct {
	TrackID int64           `json:"track_id"`
	License string          `json:"license"`
	Price   decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Items       []EventItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderPaidPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
}
