package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/beatgrid/order-service/internal/catalog"
	"github.com/beatgrid/order-service/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Error bodies
// keep the wrapped message so the offending track is named to the caller.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrInvalidState),
		errors.Is(err, orders.ErrResourceContended),
		errors.Is(err, catalog.ErrOutOfStock),
		errors.Is(err, catalog.ErrPriceChanged),
		errors.Is(err, catalog.ErrTrackNotAvailable):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userID reads the trusted identity header set by the upstream gateway.
func userID(r *http.Request) (int64, bool) {
	v := r.Header.Get("X-User-Id")
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid X-User-Id"})
}
