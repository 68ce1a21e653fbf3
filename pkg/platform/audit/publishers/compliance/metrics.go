package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for compliance audit emission.
type Metrics struct {
	EventsEmitted   prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with compliance audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_compliance_events_total",
			Help: "Total number of compliance audit events successfully persisted",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_compliance_persist_failures_total",
			Help: "Total number of compliance audit persistence failures (each one failed a registry operation)",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoseal_audit_compliance_persist_duration_seconds",
			Help:    "Time spent persisting compliance audit events",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncEventsEmitted increments the emitted counter.
func (m *Metrics) IncEventsEmitted() {
	m.EventsEmitted.Inc()
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// ObservePersistDuration records one persistence duration in seconds.
func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
