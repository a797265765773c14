package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/metrics"
	"github.com/beatgrid/order-service/internal/orders"
)

type OrderService interface {
	Checkout(ctx context.Context, userID int64) (*orders.View, error)
	Get(ctx context.Context, orderID string, userID int64) (*orders.View, error)
	List(ctx context.Context, userID int64) ([]*orders.View, error)
	Pay(ctx context.Context, orderID string, userID int64) error
	CancelOwned(ctx context.Context, orderID string, userID int64) error
}

type OrdersHandler struct {
	Svc     OrderService
	Log     *zap.Logger
	Metrics *metrics.ServerMetrics
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/order/checkout", h.checkout)
	r.Get("/order/list", h.list)
	r.Get("/order/{orderID}", h.get)
	r.Post("/order/{orderID}/pay", h.pay)
	r.Post("/order/{orderID}/cancel", h.cancel)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	// checkout can wait on locks and the catalog; give it more room than reads
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	view, err := h.Svc.Checkout(ctx, uid)
	if err != nil {
		h.countCheckout("error")
		writeError(w, err)
		return
	}
	h.countCheckout("ok")
	writeJSON(w, http.StatusCreated, view)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Svc.Get(ctx, chi.URLParam(r, "orderID"), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := h.Svc.List(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Svc.Pay(ctx, chi.URLParam(r, "orderID"), uid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "PAID"})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.CancelOwned(ctx, chi.URLParam(r, "orderID"), uid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}

func (h *OrdersHandler) countCheckout(outcome string) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.Checkouts.WithLabelValues(outcome).Inc()
}
