package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/beatgrid/order-service/internal/metrics"
)

// NewRouter builds the shared router. m may be nil (tests, the cancel worker's
// debug listener); request metrics are skipped then.
func NewRouter(m *metrics.ServerMetrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	if m != nil {
		r.Use(instrument(m))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	return r
}

func instrument(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			// route pattern, not raw path, to keep cardinality bounded
			handler := chi.RouteContext(r.Context()).RoutePattern()
			if handler == "" {
				handler = "unmatched"
			}
			m.Requests.WithLabelValues(handler, strconv.Itoa(ww.Status())).Inc()
			m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
