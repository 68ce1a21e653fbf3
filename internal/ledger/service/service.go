package service

import (
	"context"
	"log/slog"

	ledgermetrics "geoseal/internal/ledger/metrics"
	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
)

// RecordStore is the persistence contract for ledger records. Implementations
// return sentinel errors; the service translates them into domain errors.
type RecordStore interface {
	Insert(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	FindByHandle(ctx context.Context, handle id.Handle) (*models.Record, error)
	Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
	ListIDs(ctx context.Context) ([]id.RecordID, error)
	List(ctx context.Context) ([]*models.Record, error)
	Count(ctx context.Context) (int, error)
}

// ProofVerifier checks attestation proofs against the trusted keyring.
// Input proofs bind (context, owner, handle, ciphertext); reveal proofs bind
// (context, handle, cleartext value).
type ProofVerifier interface {
	VerifyInput(ctxID id.ContextID, owner id.OwnerID, handle id.Handle, ciphertext, proof []byte) error
	VerifyReveal(ctxID id.ContextID, handle id.Handle, value int64, proof []byte) error
}

// CompliancePublisher persists regulatory events. A failed emit aborts the
// surrounding transaction; the write does not count without its trail.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher records security events asynchronously.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// OpsTracker records operational events, possibly sampled.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// AvailabilityProbe pings one dependency the ledger needs to serve traffic.
type AvailabilityProbe func(ctx context.Context) error

type serviceConfig struct {
	logger     *slog.Logger
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsTracker
	metrics    *ledgermetrics.Metrics
	tx         StoreTx
	probes     []AvailabilityProbe
}

type Option func(cfg *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) {
		cfg.logger = logger
	}
}

func WithCompliancePublisher(publisher CompliancePublisher) Option {
	return func(cfg *serviceConfig) {
		cfg.compliance = publisher
	}
}

func WithSecurityPublisher(publisher SecurityPublisher) Option {
	return func(cfg *serviceConfig) {
		cfg.security = publisher
	}
}

func WithOpsTracker(tracker OpsTracker) Option {
	return func(cfg *serviceConfig) {
		cfg.ops = tracker
	}
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

// WithStoreTx supplies the transactional boundary for writes. Defaults to the
// in-memory sharded implementation when unset.
func WithStoreTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = tx
	}
}

// WithAvailabilityProbe adds a dependency ping to IsAvailable. May be given
// more than once; probes run in parallel alongside the store check.
func WithAvailabilityProbe(probe AvailabilityProbe) Option {
	return func(cfg *serviceConfig) {
		if probe != nil {
			cfg.probes = append(cfg.probes, probe)
		}
	}
}
