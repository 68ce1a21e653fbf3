// Package oracle talks to the external decryption authority and verifies what
// it returns. The verifier validates authenticity proofs locally before
// anything is submitted to the ledger; a value from the authority stays
// provisional until the caller's submit callback has durably verified it.
package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/circuit"
	strutil "geoseal/pkg/platform/strings"
)

var (
	roundTripDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoseal_oracle_round_trip_seconds",
		Help:    "Decryption authority round trip duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
	revealFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoseal_oracle_failures_total",
		Help: "Reveal protocol failures by reason",
	}, []string{"reason"})
)

// SubmitFunc performs the ledger verify for one revealed value. The verifier
// never touches storage itself; the split keeps it out of the store's
// transaction semantics.
type SubmitFunc func(ctx context.Context, handle id.Handle, value int64, proof []byte) error

// ProofChecker validates reveal attestations locally.
type ProofChecker interface {
	VerifyReveal(ctxID id.ContextID, handle id.Handle, value int64, proof []byte) error
}

type verifierConfig struct {
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// Option configures the verifier.
type Option func(*verifierConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *verifierConfig) {
		cfg.logger = logger
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cfg *verifierConfig) {
		if b != nil {
			cfg.breaker = b
		}
	}
}

// Verifier runs the reveal protocol against one decryption authority.
type Verifier struct {
	authority Authority
	checker   ProofChecker
	registry  id.ContextID
	breaker   *circuit.Breaker
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewVerifier constructs a verifier bound to the registry context.
func NewVerifier(authority Authority, checker ProofChecker, registry id.ContextID, opts ...Option) *Verifier {
	cfg := &verifierConfig{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		breaker: circuit.New("oracle"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Verifier{
		authority: authority,
		checker:   checker,
		registry:  registry,
		breaker:   cfg.breaker,
		logger:    cfg.logger,
		tracer:    otel.Tracer("geoseal.oracle"),
	}
}

// Reveal asks the authority to decrypt the given handles, validates every
// proof locally, then drives the caller's submit callback per handle. The
// returned values are canonical only because each submit has succeeded; a
// submit failure aborts the remaining handles and nothing is retried. The
// caller bounds the round trip with its context deadline.
func (v *Verifier) Reveal(ctx context.Context, handles []id.Handle, submit SubmitFunc) (map[id.Handle]int64, error) {
	handles = dedupeHandles(handles)
	if len(handles) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no handles to reveal")
	}

	if v.breaker.IsOpen() {
		revealFailures.WithLabelValues("circuit_open").Inc()
		return nil, dErrors.New(dErrors.CodeOracleTimeout, "decryption authority is unavailable")
	}

	start := time.Now()
	decryptCtx, span := v.tracer.Start(ctx, "oracle.Decrypt",
		trace.WithAttributes(attribute.Int("handles.count", len(handles))),
	)
	decryptions, err := v.authority.Decrypt(decryptCtx, v.registry, handles)
	roundTripDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authority round trip failed")
	}
	span.End()
	if err != nil {
		if _, change := v.breaker.RecordFailure(); change.Opened {
			v.logger.WarnContext(ctx, "decryption authority circuit opened",
				"breaker", v.breaker.Name(),
				"error", err,
			)
		}
		return nil, v.classifyAuthorityErr(ctx, err)
	}
	if _, change := v.breaker.RecordSuccess(); change.Closed {
		v.logger.InfoContext(ctx, "decryption authority circuit closed",
			"breaker", v.breaker.Name(),
		)
	}

	// Validate every proof before the first submit. A known-bad proof must
	// never reach the ledger.
	for _, handle := range handles {
		dec, ok := decryptions[handle]
		if !ok {
			revealFailures.WithLabelValues("incomplete").Inc()
			return nil, dErrors.New(dErrors.CodeProofInvalid, "authority response is missing a requested handle")
		}
		if err := v.checker.VerifyReveal(v.registry, handle, dec.Value, dec.Proof); err != nil {
			revealFailures.WithLabelValues("proof_invalid").Inc()
			v.logger.WarnContext(ctx, "authority proof failed local validation",
				"handle", handle,
				"error", err,
			)
			return nil, err
		}
	}

	values := make(map[id.Handle]int64, len(handles))
	for _, handle := range handles {
		dec := decryptions[handle]
		if err := submit(ctx, handle, dec.Value, dec.Proof); err != nil {
			return nil, err
		}
		values[handle] = dec.Value
	}
	return values, nil
}

func (v *Verifier) classifyAuthorityErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		revealFailures.WithLabelValues("timeout").Inc()
		return dErrors.Wrap(err, dErrors.CodeOracleTimeout, "decryption authority timed out")
	case ctx.Err() != nil:
		revealFailures.WithLabelValues("cancelled").Inc()
		return dErrors.Wrap(err, dErrors.CodeCancelled, "reveal abandoned: context cancelled")
	default:
		revealFailures.WithLabelValues("transport").Inc()
		return dErrors.Wrap(err, dErrors.CodeOracleTimeout, "decryption authority call failed")
	}
}

func dedupeHandles(handles []id.Handle) []id.Handle {
	raw := make([]string, len(handles))
	for i, h := range handles {
		raw[i] = string(h)
	}
	deduped := strutil.DedupeAndTrim(raw)
	out := make([]id.Handle, len(deduped))
	for i, h := range deduped {
		out[i] = id.Handle(h)
	}
	return out
}
