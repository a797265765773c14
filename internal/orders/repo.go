package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/beatgrid/order-service/internal/cart"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrder inserts one order plus one row per cart line in a single
// transaction. Either all rows exist afterwards or none do. Item prices are
// snapshots of the cart prices; the total is their sum.
func (r *Repo) CreateOrder(ctx context.Context, userID int64, items []cart.Item) (Order, []OrderItem, error) {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	o.ID = uuid.NewString()
	o.UserID = userID
	o.TotalAmount = total
	o.Status = StatusPending
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total_amount, status)
		VALUES ($1, $2, $3, 'PENDING')
		RETURNING created_at, updated_at
	`, o.ID, userID, total.String()).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, nil, err
	}

	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		var oi OrderItem
		oi.OrderID = o.ID
		oi.TrackID = it.TrackID
		oi.License = it.License
		oi.Price = it.Price
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, track_id, license, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`, o.ID, it.TrackID, it.License, it.Price.String()).Scan(&oi.ID, &oi.CreatedAt, &oi.UpdatedAt)
		if err != nil {
			return Order{}, nil, err
		}
		out = append(out, oi)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}
	return o, out, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var amount string
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, total_amount::text, status, created_at, updated_at
		FROM orders WHERE id=$1 AND NOT deleted
	`, orderID).Scan(&o.ID, &o.UserID, &amount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return Order{}, fmt.Errorf("bad total_amount for order %s: %w", orderID, err)
	}
	return o, nil
}

func (r *Repo) GetItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, track_id, license, price::text, synced, created_at, updated_at
		FROM order_items WHERE order_id=$1 AND NOT deleted
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var oi OrderItem
		var price string
		if err := rows.Scan(&oi.ID, &oi.OrderID, &oi.TrackID, &oi.License, &price, &oi.Synced, &oi.CreatedAt, &oi.UpdatedAt); err != nil {
			return nil, err
		}
		if oi.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, oi)
	}
	return out, rows.Err()
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, total_amount::text, status, created_at, updated_at
		FROM orders WHERE user_id=$1 AND NOT deleted
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var amount string
		if err := rows.Scan(&o.ID, &o.UserID, &amount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if o.TotalAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Transition is the only way an order changes status: a compare-and-set that
// succeeds for exactly one caller when several race on the same order.
func (r *Repo) Transition(ctx context.Context, orderID string, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, ErrInvalidState)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2 AND NOT deleted
	`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkItemSynced(ctx context.Context, itemID int64) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE order_items SET synced=TRUE, updated_at=now()
		WHERE id=$1 AND NOT deleted
	`, itemID)
	return err
}

// UnsyncedItem is one paid order line whose purchase record has not been
// confirmed downstream yet.
type UnsyncedItem struct {
	ItemID  int64
	OrderID string
	UserID  int64
	TrackID int64
	Price   decimal.Decimal
}

func (r *Repo) ListUnsyncedPaidItems(ctx context.Context, limit int) ([]UnsyncedItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, o.user_id, oi.track_id, oi.price::text
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status='PAID' AND NOT oi.synced AND NOT oi.deleted AND NOT o.deleted
		ORDER BY oi.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnsyncedItem
	for rows.Next() {
		var u UnsyncedItem
		var price string
		if err := rows.Scan(&u.ItemID, &u.OrderID, &u.UserID, &u.TrackID, &price); err != nil {
			return nil, err
		}
		if u.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
