package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	ledgermetrics "geoseal/internal/ledger/metrics"
	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/sentinel"
	"geoseal/pkg/requestcontext"
)

// LedgerService guards the append-only coordinate ledger. Registration admits
// a sealed coordinate once its input attestation checks out; Verify flips a
// record to revealed once a decryption attestation checks out. Every
// committed write carries its compliance trail in the same transaction.
type LedgerService struct {
	records      RecordStore
	verifier     ProofVerifier
	registryCtx  id.ContextID
	auditEmitter *auditEmitter
	metrics      *ledgermetrics.Metrics
	tx           StoreTx
	probes       []AvailabilityProbe
}

func NewLedgerService(records RecordStore, verifier ProofVerifier, registryCtx id.ContextID, opts ...Option) *LedgerService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	return &LedgerService{
		records:      records,
		verifier:     verifier,
		registryCtx:  registryCtx,
		auditEmitter: newAuditEmitter(cfg),
		metrics:      cfg.metrics,
		tx:           tx,
		probes:       cfg.probes,
	}
}

// RegisterInput carries one sealed coordinate into the ledger.
type RegisterInput struct {
	RecordID    id.RecordID
	Label       string
	Owner       id.OwnerID
	Handle      id.Handle
	Ciphertext  []byte
	InputProof  []byte
	PublicCoord int64
}

// Register commits a new record. The input attestation is checked before any
// state is touched; a rejected proof leaves no trace in the ledger. Returns
// CodeDuplicateRecord when the id is taken (first writer wins).
func (s *LedgerService) Register(ctx context.Context, input RegisterInput) (*models.Record, error) {
	start := time.Now()

	rec, err := models.NewRecord(
		input.RecordID,
		strings.TrimSpace(input.Label),
		input.Owner,
		input.Handle,
		input.Ciphertext,
		input.PublicCoord,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.verifier.VerifyInput(s.registryCtx, input.Owner, input.Handle, input.Ciphertext, input.InputProof); err != nil {
		s.auditEmitter.emitRegisterRejected(ctx, input.RecordID, input.Owner, input.Handle, "proof_invalid")
		s.incrementProofFailure("register")
		return nil, dErrors.New(dErrors.CodeProofInvalid, "input attestation rejected")
	}

	err = s.tx.RunInTx(withTxRecord(ctx, rec.ID), func(txCtx context.Context) error {
		if err := s.records.Insert(txCtx, rec); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeDuplicateRecord, "record id is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert record")
		}
		return s.auditEmitter.emitRecordRegistered(txCtx, models.RecordRegistered{
			RecordID: rec.ID,
			Owner:    rec.Owner,
			Handle:   rec.CiphertextHandle,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementRecordRegistered()
	s.observeRegister(start)
	return rec, nil
}

// Verify applies a verified decryption to a record. The reveal attestation is
// checked under the record lock, so the proof always validates against the
// state it mutates.
//
// When the record is already revealed, Verify returns the stored record
// together with a CodeAlreadyVerified error. Callers arriving late (a retry,
// a slow oracle response that lost the race) can treat the stored value as
// the outcome.
func (s *LedgerService) Verify(ctx context.Context, recordID id.RecordID, value int64, proof []byte) (*models.Record, error) {
	start := time.Now()
	if err := requireRecordID(recordID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var handle id.Handle
	var revealed *models.Record

	err := s.tx.RunInTx(withTxRecord(ctx, recordID), func(txCtx context.Context) error {
		rec, err := s.records.Execute(txCtx, recordID,
			func(r *models.Record) error {
				handle = r.CiphertextHandle
				if r.Revealed {
					return dErrors.New(dErrors.CodeAlreadyVerified, "record is already revealed")
				}
				if err := s.verifier.VerifyReveal(s.registryCtx, r.CiphertextHandle, value, proof); err != nil {
					return dErrors.New(dErrors.CodeProofInvalid, "reveal attestation rejected")
				}
				return nil
			},
			func(r *models.Record) {
				r.ApplyReveal(value, now)
			},
		)
		if err != nil {
			return err
		}
		if err := s.auditEmitter.emitRecordRevealed(txCtx, models.RecordRevealed{
			RecordID: rec.ID,
			Owner:    rec.Owner,
			Handle:   rec.CiphertextHandle,
			Value:    value,
		}); err != nil {
			return err
		}
		revealed = rec
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotRegistered, "record is not registered")
		case dErrors.HasCode(err, dErrors.CodeAlreadyVerified):
			current, findErr := s.records.FindByID(ctx, recordID)
			if findErr != nil {
				return nil, err
			}
			return current, err
		case dErrors.HasCode(err, dErrors.CodeProofInvalid):
			s.auditEmitter.emitRevealRejected(ctx, recordID, handle, "proof_invalid")
			s.incrementProofFailure("reveal")
			return nil, err
		default:
			return nil, err
		}
	}

	s.incrementRecordRevealed()
	s.observeVerify(start)
	return revealed, nil
}

// Get returns current record state. Readable in every lifecycle state; the
// sealed value stays sealed until revealed.
func (s *LedgerService) Get(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	if err := requireRecordID(recordID); err != nil {
		return nil, err
	}
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, wrapRecordErr(err)
	}
	s.auditEmitter.trackRecordFetched(ctx, recordID)
	return rec, nil
}

// GetByHandle resolves a ciphertext handle to its record. The decryption
// authority uses this to fetch sealed bytes by reference.
func (s *LedgerService) GetByHandle(ctx context.Context, handle id.Handle) (*models.Record, error) {
	if handle == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ciphertext handle is required")
	}
	rec, err := s.records.FindByHandle(ctx, handle)
	if err != nil {
		return nil, wrapRecordErr(err)
	}
	return rec, nil
}

// ListIDs returns all record ids in registration order.
func (s *LedgerService) ListIDs(ctx context.Context) ([]id.RecordID, error) {
	ids, err := s.records.ListIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list record ids")
	}
	s.auditEmitter.trackRegistryListed(ctx)
	return ids, nil
}

// List returns all records in registration order.
func (s *LedgerService) List(ctx context.Context) ([]*models.Record, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	s.auditEmitter.trackRegistryListed(ctx)
	return records, nil
}

// Count returns the number of registered records.
func (s *LedgerService) Count(ctx context.Context) (int, error) {
	count, err := s.records.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count records")
	}
	return count, nil
}

// IsAvailable reports whether the ledger can serve reads and writes right now.
// The store is probed with a cheap count; registered dependency probes run in
// parallel. Any failure means unavailable.
func (s *LedgerService) IsAvailable(ctx context.Context) bool {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.records.Count(ctx)
		return err
	})
	for _, probe := range s.probes {
		g.Go(func() error {
			return probe(ctx)
		})
	}
	return g.Wait() == nil
}

func requireRecordID(recordID id.RecordID) error {
	if recordID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "record id is required")
	}
	return nil
}

// wrapRecordErr translates store sentinels into domain errors.
func wrapRecordErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotRegistered, "record is not registered")
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger store failure")
}

func (s *LedgerService) incrementRecordRegistered() {
	if s.metrics != nil {
		s.metrics.IncrementRecordRegistered()
	}
}

func (s *LedgerService) incrementRecordRevealed() {
	if s.metrics != nil {
		s.metrics.IncrementRecordRevealed()
	}
}

func (s *LedgerService) incrementProofFailure(stage string) {
	if s.metrics != nil {
		s.metrics.IncrementProofFailure(stage)
	}
}

func (s *LedgerService) observeRegister(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRegister(start)
	}
}

func (s *LedgerService) observeVerify(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(start)
	}
}
