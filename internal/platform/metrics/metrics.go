package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Domain packages register their own
// metrics next to their services.
type Metrics struct {
	RequestLatency *prometheus.HistogramVec
	AuthFailures   prometheus.Counter
}

// New creates and registers all process-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoseal_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_http_auth_failures_total",
			Help: "Total number of rejected authentications",
		}),
	}
}

// ObserveRequestLatency records one request duration. Safe on a nil receiver
// so handlers can run without metrics in tests.
func (m *Metrics) ObserveRequestLatency(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// IncAuthFailures increments the auth failure counter. Safe on a nil receiver.
func (m *Metrics) IncAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}
