package orders

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("order belongs to another user")
	ErrInvalidState      = errors.New("order status does not allow this operation")
	ErrResourceContended = errors.New("track is being purchased by another user")
)
