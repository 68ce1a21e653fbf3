package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published       prometheus.Counter
	PublishFailures prometheus.Counter
	BatchDuration   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with relay metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_outbox_published_total",
			Help: "Total number of outbox entries published to Kafka",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoseal_outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoseal_outbox_batch_duration_seconds",
			Help:    "Time spent publishing one outbox batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// AddPublished adds to the published counter.
func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

// IncPublishFailures increments the publish failures counter.
func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}

// ObserveBatchDuration records one batch publish duration in seconds.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	m.BatchDuration.Observe(seconds)
}
