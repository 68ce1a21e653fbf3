package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for security audit buffering.
type Metrics struct {
	Emitted         prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	BufferDepth     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with security audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_security_events_total",
			Help: "Total number of security audit events emitted",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_security_dropped_total",
			Help: "Total number of security audit events dropped from a full buffer",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_security_persist_failures_total",
			Help: "Total number of security audit flush failures",
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "geoseal_audit_security_buffer_depth",
			Help: "Current number of security audit events waiting to be flushed",
		}),
	}
}

// IncEmitted increments the emitted counter.
func (m *Metrics) IncEmitted() {
	m.Emitted.Inc()
}

// AddDropped adds to the dropped counter.
func (m *Metrics) AddDropped(n int64) {
	m.Dropped.Add(float64(n))
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// SetBufferDepth sets the buffer depth gauge.
func (m *Metrics) SetBufferDepth(n int) {
	m.BufferDepth.Set(float64(n))
}
