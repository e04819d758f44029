// Package metrics exposes HTTP-level Prometheus metrics and the middleware
// that records them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP holds request-level Prometheus metrics.
type HTTP struct {
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates and registers the HTTP metrics.
func New() *HTTP {
	return &HTTP{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dossierflow_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dossierflow_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
	}
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request duration and in-flight counts. Routes are
// labelled by chi pattern rather than raw path to keep cardinality bounded.
func (m *HTTP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
