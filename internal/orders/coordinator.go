package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/cart"
	"github.com/beatgrid/order-service/internal/kafkax"
	"github.com/beatgrid/order-service/internal/locks"
)

type CartStore interface {
	Get(ctx context.Context, userID int64) ([]cart.Item, error)
	Clear(ctx context.Context, userID int64) error
}

type ItemValidator interface {
	Validate(ctx context.Context, item cart.Item) error
}

type Repository interface {
	CreateOrder(ctx context.Context, userID int64, items []cart.Item) (Order, []OrderItem, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetItems(ctx context.Context, orderID string) ([]OrderItem, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Transition(ctx context.Context, orderID string, from, to Status) (bool, error)
	MarkItemSynced(ctx context.Context, itemID int64) error
}

// CancelScheduler arranges for a cancellation signal to reach Cancel once the
// TTL elapses, at-least-once, surviving process restarts.
type CancelScheduler interface {
	ScheduleCancel(ctx context.Context, orderID string, ttl time.Duration) error
}

type PurchaseNotifier interface {
	ConfirmPurchase(ctx context.Context, trackID, userID int64, pricePaid decimal.Decimal) error
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Coordinator owns the order state machine: checkout, payment, cancellation
// and querying. It is stateless between requests; everything shared lives in
// the cart store, the repository, and the lock service.
type Coordinator struct {
	Cart      CartStore
	Locks     locks.Locker
	Validator ItemValidator
	Repo      Repository
	Scheduler CancelScheduler
	Notifier  PurchaseNotifier
	Producer  EventPublisher // optional; nil disables the projection feed
	Log       *zap.Logger
	TTL       time.Duration
	Service   string
}

// Checkout turns the user's cart into a PENDING order.
//
// Lock → validate → persist → clear cart → release → schedule cancel.
// Failures before the durable write leave no rows and an intact cart, so the
// user can retry. Leases only protect the validate→persist window and are
// dropped before any broker round trip.
func (c *Coordinator) Checkout(ctx context.Context, userID int64) (*View, error) {
	items, err := c.Cart.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var leases []locks.Lease
	release := func() {
		for i := len(leases) - 1; i >= 0; i-- {
			if err := leases[i].Release(ctx); err != nil {
				// hold timeout is the backstop
				c.Log.Warn("lease release failed", zap.String("key", leases[i].Key()), zap.Error(err))
			}
		}
		leases = nil
	}
	defer release()

	// Exclusive items are locked in a fixed global order so two checkouts
	// wanting the same two tracks cannot deadlock each other.
	excl := exclusiveSorted(items)
	for _, it := range excl {
		lease, err := c.Locks.TryAcquire(ctx, locks.TrackKey(it.TrackID))
		if err != nil {
			if errors.Is(err, locks.ErrNotAcquired) {
				return nil, fmt.Errorf("track %q: %w", it.Title, ErrResourceContended)
			}
			return nil, err
		}
		leases = append(leases, lease)
	}

	for _, it := range items {
		if err := c.Validator.Validate(ctx, it); err != nil {
			return nil, err
		}
	}

	order, orderItems, err := c.Repo.CreateOrder(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	if err := c.Cart.Clear(ctx, userID); err != nil {
		// The order is durable; a stale cart is recoverable, a phantom
		// checkout failure is not.
		c.Log.Warn("cart clear failed after order create",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	release()

	if err := c.Scheduler.ScheduleCancel(ctx, order.ID, c.TTL); err != nil {
		c.Log.Error("schedule delayed cancel failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	c.publishCreated(order, orderItems)

	c.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total_amount", order.TotalAmount.String()))

	return order.view(orderItems), nil
}

func (c *Coordinator) Get(ctx context.Context, orderID string, userID int64) (*View, error) {
	order, err := c.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	items, err := c.Repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.view(items), nil
}

func (c *Coordinator) List(ctx context.Context, userID int64) ([]*View, error) {
	ords, err := c.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*View, 0, len(ords))
	for _, o := range ords {
		items, err := c.Repo.GetItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, o.view(items))
	}
	return out, nil
}

// Pay transitions PENDING → PAID and then syncs purchase records downstream.
// Payment is the durable source of truth: sync failures are logged for the
// reconciler and never roll the payment back.
func (c *Coordinator) Pay(ctx context.Context, orderID string, userID int64) error {
	order, err := c.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrForbidden
	}
	if order.Status != StatusPending {
		return fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidState)
	}

	changed, err := c.Repo.Transition(ctx, orderID, StatusPending, StatusPaid)
	if err != nil {
		return err
	}
	if !changed {
		// lost the race against the timeout cancel
		return fmt.Errorf("order %s: %w", orderID, ErrInvalidState)
	}

	c.Log.Info("order paid", zap.String("order_id", orderID), zap.Int64("user_id", userID))

	c.publishEvent(EventOrderPaid, orderID, OrderPaidPayload{
		OrderID:     orderID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
	})

	c.syncPurchases(ctx, order)
	return nil
}

// Cancel is the single transition point for cancellation, shared by the
// timeout worker and the user-facing endpoint. It is an idempotent no-op
// unless the order is still PENDING, which makes duplicate delivery of the
// delayed cancel message harmless.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) error {
	order, err := c.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		c.Log.Warn("cancel for unknown order", zap.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		c.Log.Info("order not pending, cancel skipped",
			zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		return nil
	}

	changed, err := c.Repo.Transition(ctx, orderID, StatusPending, StatusCancelled)
	if err != nil {
		return err
	}
	if changed {
		c.Log.Info("order cancelled", zap.String("order_id", orderID))
		c.publishEvent(EventOrderCancelled, orderID, OrderCancelledPayload{
			OrderID: orderID,
			UserID:  order.UserID,
		})
	}
	return nil
}

// CancelOwned is the user-facing cancel: it verifies ownership and reports
// a state conflict instead of silently skipping, then funnels into Cancel.
func (c *Coordinator) CancelOwned(ctx context.Context, orderID string, userID int64) error {
	order, err := c.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrForbidden
	}
	if order.Status != StatusPending {
		return fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidState)
	}
	return c.Cancel(ctx, orderID)
}

func (c *Coordinator) syncPurchases(ctx context.Context, order Order) {
	items, err := c.Repo.GetItems(ctx, order.ID)
	if err != nil {
		c.Log.Error("load items for purchase sync failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	for _, it := range items {
		if it.Synced {
			continue
		}
		if err := c.confirmWithRetry(ctx, it.TrackID, order.UserID, it.Price); err != nil {
			c.Log.Error("purchase sync failed, left for reconciler",
				zap.String("order_id", order.ID),
				zap.Int64("track_id", it.TrackID),
				zap.Error(err))
			continue
		}
		if err := c.Repo.MarkItemSynced(ctx, it.ID); err != nil {
			c.Log.Warn("mark item synced failed",
				zap.Int64("item_id", it.ID), zap.Error(err))
		}
	}
}

const (
	confirmAttempts = 3
	confirmBackoff  = 250 * time.Millisecond
)

func (c *Coordinator) confirmWithRetry(ctx context.Context, trackID, userID int64, price decimal.Decimal) error {
	var err error
	for attempt := 0; attempt < confirmAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(confirmBackoff):
			}
		}
		if err = c.Notifier.ConfirmPurchase(ctx, trackID, userID, price); err == nil {
			return nil
		}
	}
	return err
}

func (c *Coordinator) publishCreated(order Order, items []OrderItem) {
	evItems := make([]EventItem, 0, len(items))
	for _, it := range items {
		evItems = append(evItems, EventItem{TrackID: it.TrackID, License: it.License, Price: it.Price})
	}
	c.publishEvent(EventOrderCreated, order.ID, OrderCreatedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       evItems,
		TotalAmount: order.TotalAmount,
	})
}

func (c *Coordinator) publishEvent(eventType, orderID string, payload any) {
	if c.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	c.Producer.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func exclusiveSorted(items []cart.Item) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	for _, it := range items {
		if it.License == cart.LicenseExclusive {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}
