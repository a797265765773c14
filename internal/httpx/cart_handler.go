package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/beatgrid/order-service/internal/cart"
)

type CartStore interface {
	Add(ctx context.Context, userID int64, item cart.Item) error
	Remove(ctx context.Context, userID, trackID int64) error
	Get(ctx context.Context, userID int64) ([]cart.Item, error)
	Clear(ctx context.Context, userID int64) error
}

type CartHandler struct {
	Store CartStore
	Log   *zap.Logger
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/order/cart", h.add)
	r.Get("/order/cart", h.list)
	r.Delete("/order/cart/{trackID}", h.remove)
	r.Delete("/order/cart", h.clear)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	var item cart.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if item.TrackID <= 0 || item.Title == "" || item.Price.IsNegative() || !cart.ValidLicense(item.License) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart item"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Add(ctx, uid, item); err != nil {
		h.Log.Warn("cart add failed", zap.Int64("user_id", uid), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cart unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.Get(ctx, uid)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cart unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	trackID, err := strconv.ParseInt(chi.URLParam(r, "trackID"), 10, 64)
	if err != nil || trackID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid track id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Remove(ctx, uid, trackID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cart unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Clear(ctx, uid); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cart unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
