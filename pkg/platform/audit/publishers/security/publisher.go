// Package security provides a non-blocking audit publisher for security events.
//
// Security events (rejected attestations, failed reveal proofs, auth failures)
// must never slow down or fail the request that triggered them. Events land in
// a bounded ring buffer and a background flusher persists them in batches.
// Under sustained store outage the oldest events are dropped and counted.
//
// Use for: register_rejected, reveal_rejected, auth_failed
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "geoseal/pkg/platform/audit"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	flushTimeout         = 5 * time.Second
)

// Publisher emits security events with buffered, non-blocking semantics.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	logger  *slog.Logger
	metrics *Metrics

	batchSize     int
	flushInterval time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for flush error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = NewRingBuffer(n)
		}
	}
}

// WithBatchSize sets how many events one flush attempts to persist.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how often buffered events are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// New creates a security publisher and starts its background flusher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        NewRingBuffer(defaultBufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit buffers a security event. It never blocks and never returns an error;
// if the buffer is full the oldest event is dropped and counted.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	before := p.buffer.Dropped()
	p.buffer.Enqueue(event)

	if p.metrics != nil {
		p.metrics.IncEmitted()
		if d := p.buffer.Dropped() - before; d > 0 {
			p.metrics.AddDropped(d)
		}
		p.metrics.SetBufferDepth(p.buffer.Len())
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			// Final drain; bounded so shutdown cannot hang on a dead store.
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			p.flush(ctx)
			cancel()
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			p.flush(ctx)
			cancel()
		}
	}
}

// flush persists buffered events in batches until the buffer is empty or a
// persist fails. Failed events go back into the buffer for the next cycle.
func (p *Publisher) flush(ctx context.Context) {
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}

		for i, event := range batch {
			if err := p.store.Append(ctx, event.ToLegacyEvent()); err != nil {
				if p.metrics != nil {
					p.metrics.IncPersistFailures()
				}
				if p.logger != nil {
					p.logger.Warn("security audit flush failed, re-buffering",
						"remaining", len(batch)-i,
						"error", err,
					)
				}
				// Requeue what we could not persist; drops are fine under
				// sustained outage, that is what the counter is for.
				for _, e := range batch[i:] {
					p.buffer.Enqueue(e)
				}
				return
			}
		}

		if p.metrics != nil {
			p.metrics.SetBufferDepth(p.buffer.Len())
		}
	}
}

// Close stops the flusher after a final bounded drain.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	<-p.done
	return nil
}
