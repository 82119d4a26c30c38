package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP request metrics.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the request metrics, plus the Go and process
// collectors, on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requestsTotal,
		RequestDuration: requestDuration,
	}
}

// Unmatched is the route label for requests no route accepted.
const Unmatched = "unmatched"

// Middleware records every request under its route template, so ids in the
// path do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return m.instrument(next, func(r *http.Request) string {
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				return tpl
			}
		}
		return Unmatched
	})
}

// UnmatchedMiddleware records requests under the Unmatched label. It wraps
// the router's not-found and method-not-allowed handlers, which gorilla/mux
// runs without the router's middleware.
func (m *Metrics) UnmatchedMiddleware(next http.Handler) http.Handler {
	return m.instrument(next, func(*http.Request) string { return Unmatched })
}

func (m *Metrics) instrument(next http.Handler, route func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		label := route(r)
		m.RequestsTotal.WithLabelValues(label, r.Method, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
