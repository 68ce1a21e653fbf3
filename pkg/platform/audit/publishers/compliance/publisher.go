// Package compliance provides the fail-closed audit publisher for regulatory
// events.
//
// Registrations and reveals must leave a durable trace. Emit writes through
// the audit store synchronously and hands any failure back to the caller,
// whose operation must then abort. Nothing here is buffered or sampled.
//
// Use for: record_registered, record_revealed
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "geoseal/pkg/platform/audit"
)

// Publisher emits compliance events synchronously. The caller blocks until
// the event is durable or the write has failed.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
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

// New creates a compliance publisher backed by store. Guaranteed delivery
// needs an outbox-backed store underneath.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists one compliance event, returning an error when it could not.
// Callers treat that error as fatal to the operation being audited: if the
// trace cannot be written, the registry write must not proceed.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.ToLegacyEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"record_id", event.RecordID,
				"owner_id", event.OwnerID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}

	return nil
}

// validate rejects events missing the fields a compliance row cannot do
// without.
func validate(event audit.ComplianceEvent) error {
	switch {
	case event.OwnerID == "":
		return fmt.Errorf("compliance event requires OwnerID")
	case event.RecordID == "":
		return fmt.Errorf("compliance event requires RecordID")
	case event.Action == "":
		return fmt.Errorf("compliance event requires Action")
	}
	return nil
}

// Close is a no-op; Emit has no buffers to drain.
func (p *Publisher) Close() error {
	return nil
}
