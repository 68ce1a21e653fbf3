package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module.
// Tracks registration/reveal counts, proof rejections, and critical path durations.
type Metrics struct {
	RecordsRegistered prometheus.Counter
	RecordsRevealed   prometheus.Counter
	ProofFailures     *prometheus.CounterVec
	RegisterDuration  prometheus.Histogram
	VerifyDuration    prometheus.Histogram
}

// New creates a new Metrics instance with all ledger module metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_records_registered_total",
			Help: "Total number of records committed to the ledger",
		}),
		RecordsRevealed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_records_revealed_total",
			Help: "Total number of records revealed through verified decryption",
		}),
		ProofFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geoseal_proof_failures_total",
			Help: "Total number of rejected attestation proofs by stage",
		}, []string{"stage"}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoseal_ledger_register_duration_seconds",
			Help:    "Duration of ledger Register operations (write critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoseal_ledger_verify_duration_seconds",
			Help:    "Duration of ledger Verify operations (reveal critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRecordRegistered records a committed registration.
func (m *Metrics) IncrementRecordRegistered() {
	m.RecordsRegistered.Inc()
}

// IncrementRecordRevealed records a committed reveal.
func (m *Metrics) IncrementRecordRevealed() {
	m.RecordsRevealed.Inc()
}

// IncrementProofFailure records a rejected proof at the given stage
// ("register" or "reveal").
func (m *Metrics) IncrementProofFailure(stage string) {
	m.ProofFailures.WithLabelValues(stage).Inc()
}

// ObserveRegister records the duration of a Register operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
