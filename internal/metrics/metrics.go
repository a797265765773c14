package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beatgrid",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beatgrid",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beatgrid",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(requests, latency, checkouts)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, Checkouts: checkouts}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
