// Package fhe wraps the homomorphic encryption backend behind a readiness
// lifecycle. Every ciphertext is bound to the registry context and its owner
// at encryption time; the adapter refuses work until the backend is Ready.
package fhe

import (
	"context"
	"io"
	"log/slog"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

type adapterConfig struct {
	logger    *slog.Logger
	lifecycle *Lifecycle
}

// Option configures the adapter.
type Option func(*adapterConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *adapterConfig) {
		cfg.logger = logger
	}
}

// WithLifecycle shares an externally constructed lifecycle, for callers that
// report readiness elsewhere.
func WithLifecycle(lifecycle *Lifecycle) Option {
	return func(cfg *adapterConfig) {
		cfg.lifecycle = lifecycle
	}
}

// Adapter is the encrypt surface handed to the registrar. It holds the
// backend client, its lifecycle, and the registry context every ciphertext is
// bound to.
type Adapter struct {
	client    Client
	lifecycle *Lifecycle
	registry  id.ContextID
	logger    *slog.Logger
}

// NewAdapter constructs an encryption adapter for the given backend.
func NewAdapter(client Client, registry id.ContextID, opts ...Option) *Adapter {
	cfg := &adapterConfig{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		lifecycle: NewLifecycle(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Adapter{
		client:    client,
		lifecycle: cfg.lifecycle,
		registry:  registry,
		logger:    cfg.logger,
	}
}

// Initialize brings the backend to Ready. Safe to call from any number of
// goroutines; attempts collapse into one.
func (a *Adapter) Initialize(ctx context.Context) error {
	err := a.lifecycle.Initialize(ctx, a.client.Init)
	if err != nil {
		a.logger.ErrorContext(ctx, "encryption backend initialization failed",
			"state", a.lifecycle.State(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeEncryptionUnavailable, "encryption backend initialization failed")
	}
	a.logger.InfoContext(ctx, "encryption backend ready")
	return nil
}

// State returns the backend lifecycle state, for readiness probes.
func (a *Adapter) State() State { return a.lifecycle.State() }

// InitErr returns the most recent initialization failure, for readiness
// probes.
func (a *Adapter) InitErr() error { return a.lifecycle.Err() }

// Encrypt produces a fresh ciphertext for the plaintext, bound to the
// registry context and the owner. Refused while the backend is not Ready;
// results are never cached or reused across calls.
func (a *Adapter) Encrypt(ctx context.Context, owner id.OwnerID, plaintext int64) (*Ciphertext, error) {
	if state := a.lifecycle.State(); state != StateReady {
		return nil, dErrors.New(dErrors.CodeEncryptionUnavailable, "encryption backend is not ready")
	}

	ct, err := a.client.Encrypt(ctx, a.registry, owner, plaintext)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCancelled, "encryption abandoned: context cancelled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeEncryptionUnavailable, "encryption backend call failed")
	}
	return ct, nil
}
