// Package ops provides a fire-and-forget audit tracker for operational events.
//
// Ops events are high-volume and low-stakes: record fetches, listings, backend
// lifecycle changes. The tracker samples them, drops them when the audit store
// is unhealthy, and persists asynchronously. Losing ops events is acceptable;
// slowing down requests is not.
//
// Use for: record_fetched, registry_listed, oracle_timeout, encryption_* events
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "geoseal/pkg/platform/audit"
)

const (
	defaultBufferSize       = 1000
	defaultSampleRate       = 1.0
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = time.Minute
)

// Tracker emits operational events with sampling and a circuit breaker.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	inbox    chan audit.OpsEvent
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger sets a logger for persistence error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSampler replaces the default keep-everything sampler.
func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sampler = s
		}
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) {
		if cb != nil {
			t.breaker = cb
		}
	}
}

// WithBuffer sets the async buffer size.
func WithBuffer(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.inbox = make(chan audit.OpsEvent, n)
		}
	}
}

// New creates an ops tracker and starts its background persister.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(defaultSampleRate),
		breaker: NewCircuitBreaker(defaultBreakerThreshold, defaultBreakerCooldown),
		inbox:   make(chan audit.OpsEvent, defaultBufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.run()
	return t
}

// Track records an operational event. It never blocks and never returns an
// error. Events may be dropped by sampling, by an open circuit breaker, or by
// a full buffer.
func (t *Tracker) Track(_ context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
		}
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// The lock covers the send so Close cannot close the channel underneath
	// it. The select never blocks.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	select {
	case t.inbox <- event:
	default:
		// Buffer full. Ops events are droppable, so drop.
		if t.metrics != nil {
			t.metrics.IncPersistFailures()
		}
	}
}

func (t *Tracker) run() {
	defer close(t.done)

	for event := range t.inbox {
		err := t.store.Append(context.Background(), event.ToLegacyEvent())
		if err != nil {
			t.breaker.RecordFailure()
			if t.metrics != nil {
				t.metrics.IncPersistFailures()
				t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
			}
			if t.logger != nil {
				t.logger.Warn("ops audit persist failed",
					"action", event.Action,
					"error", err,
				)
			}
			continue
		}

		t.breaker.RecordSuccess()
		if t.metrics != nil {
			t.metrics.IncTracked()
			t.metrics.SetCircuitBreakerState(false)
		}
	}
}

// Close stops the persister after draining buffered events.
func (t *Tracker) Close() error {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.inbox)
	})
	<-t.done
	return nil
}
