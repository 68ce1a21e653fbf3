package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the ops audit tracker.
type Metrics struct {
	Tracked               prometheus.Counter
	Sampled               prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	PersistFailures       prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with ops audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_ops_tracked_total",
			Help: "Operational audit events persisted by the tracker",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_ops_sampled_total",
			Help: "Operational audit events discarded by sampling",
		}),
		CircuitBreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_ops_circuit_breaker_dropped_total",
			Help: "Operational audit events discarded while the breaker was open",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_audit_ops_persist_failures_total",
			Help: "Operational audit events that failed to persist or overflowed the buffer",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "geoseal_audit_ops_circuit_breaker_state",
			Help: "Audit store breaker state, 0 closed and 1 open",
		}),
	}
}

// IncTracked increments the tracked counter.
func (m *Metrics) IncTracked() {
	m.Tracked.Inc()
}

// IncSampled increments the sampled counter.
func (m *Metrics) IncSampled() {
	m.Sampled.Inc()
}

// IncCircuitBreakerDropped increments the breaker dropped counter.
func (m *Metrics) IncCircuitBreakerDropped() {
	m.CircuitBreakerDropped.Inc()
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// SetCircuitBreakerState sets the breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
