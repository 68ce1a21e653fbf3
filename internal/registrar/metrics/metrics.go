package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registrar flows.
// Outcomes are labelled with the domain error code, or "ok" on success, so
// the taxonomy keeps label cardinality bounded.
type Metrics struct {
	Flows              *prometheus.CounterVec
	FlowDuration       *prometheus.HistogramVec
	InFlightRejections prometheus.Counter
}

// New creates a new Metrics instance with all registrar flow metrics registered.
func New() *Metrics {
	return &Metrics{
		Flows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geoseal_registrar_flows_total",
			Help: "Total registrar flow completions by flow and outcome",
		}, []string{"flow", "outcome"}),
		FlowDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoseal_registrar_flow_duration_seconds",
			Help:    "End-to-end flow duration including capability round trips",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"flow"}),
		InFlightRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_registrar_inflight_rejections_total",
			Help: "Total invocations rejected because a flow already held the record id",
		}),
	}
}

// IncrementFlow records a flow completion with its outcome label.
func (m *Metrics) IncrementFlow(flow, outcome string) {
	m.Flows.WithLabelValues(flow, outcome).Inc()
}

// ObserveFlow records the duration of a flow. Call with time.Now() taken at
// the start of the flow.
func (m *Metrics) ObserveFlow(flow string, start time.Time) {
	m.FlowDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
}

// IncrementInFlightRejection records a duplicate invocation rejected by the
// per-record guard.
func (m *Metrics) IncrementInFlightRejection() {
	m.InFlightRejections.Inc()
}
