// Package service sequences the two registry flows across the sealing
// backend, the decryption authority, and the ledger. The ledger remains the
// single synchronization point for record state; this service refuses
// obviously doomed invocations early and translates capability failures into
// the caller-facing error taxonomy.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"geoseal/internal/fhe"
	"geoseal/internal/ledger/models"
	ledger "geoseal/internal/ledger/service"
	"geoseal/internal/oracle"
	registrarmetrics "geoseal/internal/registrar/metrics"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/audit"
	"geoseal/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger,Encrypter,Revealer,ListingCache

const (
	flowCreate = "create"
	flowReveal = "reveal"
)

// Ledger is the slice of the ledger service the flows drive.
type Ledger interface {
	Register(ctx context.Context, input ledger.RegisterInput) (*models.Record, error)
	Verify(ctx context.Context, recordID id.RecordID, value int64, proof []byte) (*models.Record, error)
	Get(ctx context.Context, recordID id.RecordID) (*models.Record, error)
}

// Encrypter seals a confidential coordinate for the registry context.
type Encrypter interface {
	Encrypt(ctx context.Context, owner id.OwnerID, plaintext int64) (*fhe.Ciphertext, error)
}

// Revealer runs the verified decryption protocol against the authority.
type Revealer interface {
	Reveal(ctx context.Context, handles []id.Handle, submit oracle.SubmitFunc) (map[id.Handle]int64, error)
}

// ListingCache is dropped after every committed write so the next listing
// read repopulates from the ledger.
type ListingCache interface {
	Invalidate(ctx context.Context) error
}

// OpsTracker records operational flow events, possibly sampled.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

type serviceConfig struct {
	logger        *slog.Logger
	cache         ListingCache
	ops           OpsTracker
	metrics       *registrarmetrics.Metrics
	revealTimeout time.Duration
}

// Option configures optional service dependencies.
type Option func(*serviceConfig)

// WithLogger sets the logger for flow milestones.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

// WithListingCache sets the listing cache invalidated after committed writes.
func WithListingCache(cache ListingCache) Option {
	return func(cfg *serviceConfig) { cfg.cache = cache }
}

// WithOpsTracker records authority timeouts and abandoned reveals in the
// operational audit trail.
func WithOpsTracker(tracker OpsTracker) Option {
	return func(cfg *serviceConfig) { cfg.ops = tracker }
}

// WithMetrics enables flow metrics.
func WithMetrics(m *registrarmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithRevealTimeout bounds the verified decryption round trip, authority call
// and ledger submit included. Zero leaves the caller's deadline in charge.
func WithRevealTimeout(d time.Duration) Option {
	return func(cfg *serviceConfig) { cfg.revealTimeout = d }
}

// Service orchestrates the create and reveal flows.
type Service struct {
	ledger        Ledger
	encrypter     Encrypter
	revealer      Revealer
	cache         ListingCache
	ops           OpsTracker
	inflight      *inflight
	metrics       *registrarmetrics.Metrics
	revealTimeout time.Duration
	logger        *slog.Logger
	tracer        trace.Tracer
}

func New(ledgerSvc Ledger, encrypter Encrypter, revealer Revealer, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		ledger:        ledgerSvc,
		encrypter:     encrypter,
		revealer:      revealer,
		cache:         cfg.cache,
		ops:           cfg.ops,
		inflight:      newInflight(),
		metrics:       cfg.metrics,
		revealTimeout: cfg.revealTimeout,
		logger:        cfg.logger,
		tracer:        otel.Tracer("geoseal.registrar"),
	}
}

// finalize classifies a failure at the durability boundary. Errors already
// carrying a taxonomy code pass through; caller abandonment wins over
// infrastructure noise; anything left is a failed transaction.
func finalize(ctx context.Context, err error, msg string) error {
	if isFlowCode(dErrors.CodeOf(err)) {
		return err
	}
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeCancelled, "flow abandoned: context cancelled")
	}
	return dErrors.Wrap(err, dErrors.CodeTxFailed, msg)
}

// isFlowCode reports whether the code belongs to the caller-facing taxonomy
// the flows surface unchanged.
func isFlowCode(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput,
		dErrors.CodeConflict, dErrors.CodeDuplicateRecord, dErrors.CodeNotRegistered,
		dErrors.CodeAlreadyVerified, dErrors.CodeProofInvalid,
		dErrors.CodeEncryptionUnavailable, dErrors.CodeOracleTimeout,
		dErrors.CodeCancelled:
		return true
	}
	return false
}

// invalidateListing drops the cached listing after a committed write. A
// failed invalidation leaves a stale listing until the TTL expires; the
// write itself already committed.
func (s *Service) invalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidation failed", "error", err.Error())
	}
}

// trackRevealFailure records authority timeouts and caller abandonment in the
// ops trail. Neither is a security signal; operators watch them for capacity
// and authority health.
func (s *Service) trackRevealFailure(ctx context.Context, recordID id.RecordID, err error) {
	if s.ops == nil {
		return
	}
	var action audit.AuditEvent
	switch dErrors.CodeOf(err) {
	case dErrors.CodeOracleTimeout:
		action = audit.EventOracleTimeout
	case dErrors.CodeCancelled:
		action = audit.EventRevealCancelled
	default:
		return
	}
	done := context.WithoutCancel(ctx)
	s.ops.Track(done, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   recordID.String(),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) observeFlow(flow string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.IncrementFlow(flow, outcome)
	s.metrics.ObserveFlow(flow, start)
}

func (s *Service) incrementInFlightRejection() {
	if s.metrics != nil {
		s.metrics.IncrementInFlightRejection()
	}
}
