package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"geoseal/internal/attest"
	"geoseal/internal/ledger/models"
	"geoseal/internal/ledger/store/record"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/audit"
)

type captureCompliance struct {
	mu     sync.Mutex
	events []audit.ComplianceEvent
	err    error
}

func (c *captureCompliance) Emit(_ context.Context, event audit.ComplianceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureCompliance) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions := make([]string, 0, len(c.events))
	for _, event := range c.events {
		actions = append(actions, event.Action)
	}
	return actions
}

type captureSecurity struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (c *captureSecurity) Emit(_ context.Context, event audit.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

type captureOps struct {
	mu     sync.Mutex
	events []audit.OpsEvent
}

func (c *captureOps) Track(_ context.Context, event audit.OpsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

type LedgerServiceSuite struct {
	suite.Suite
	ctx         context.Context
	registryCtx id.ContextID
	signer      *attest.Signer
	store       *record.InMemory
	compliance  *captureCompliance
	security    *captureSecurity
	ops         *captureOps
	service     *LedgerService
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupSuite() {
	s.ctx = context.Background()
	s.registryCtx = id.ContextID("registry-test")
}

func (s *LedgerServiceSuite) SetupTest() {
	pub, priv, err := attest.GenerateKey()
	s.Require().NoError(err)
	s.signer = attest.NewSigner(priv)

	s.store = record.NewInMemory()
	s.compliance = &captureCompliance{}
	s.security = &captureSecurity{}
	s.ops = &captureOps{}
	s.service = NewLedgerService(s.store, attest.NewKeyring(pub), s.registryCtx,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCompliancePublisher(s.compliance),
		WithSecurityPublisher(s.security),
		WithOpsTracker(s.ops),
	)
}

func (s *LedgerServiceSuite) SetupSubTest() {
	s.SetupTest()
}

const testOwner = id.OwnerID("owner-7f3a")

func (s *LedgerServiceSuite) newInput(recordID string, ciphertext []byte) RegisterInput {
	handle := attest.HandleFor(ciphertext)
	return RegisterInput{
		RecordID:    id.RecordID(recordID),
		Label:       "Station " + recordID,
		Owner:       testOwner,
		Handle:      handle,
		Ciphertext:  ciphertext,
		InputProof:  s.signer.AttestInput(s.registryCtx, testOwner, handle, ciphertext),
		PublicCoord: 10_757_933,
	}
}

func (s *LedgerServiceSuite) register(recordID string) *models.Record {
	rec, err := s.service.Register(s.ctx, s.newInput(recordID, []byte("sealed-"+recordID)))
	s.Require().NoError(err)
	return rec
}

func (s *LedgerServiceSuite) TestRegister() {
	s.Run("commits record with valid attestation", func() {
		input := s.newInput("site-alpha", []byte("sealed-alpha"))

		rec, err := s.service.Register(s.ctx, input)
		s.Require().NoError(err)
		s.Equal(input.RecordID, rec.ID)
		s.Equal(input.Handle, rec.CiphertextHandle)
		s.False(rec.Revealed)

		stored, err := s.store.FindByID(s.ctx, input.RecordID)
		s.Require().NoError(err)
		s.Equal(input.Ciphertext, stored.Ciphertext)

		s.Equal([]string{string(audit.EventRecordRegistered)}, s.compliance.actions())
	})

	s.Run("rejects tampered ciphertext without touching the ledger", func() {
		input := s.newInput("site-tampered", []byte("sealed-original"))
		input.Ciphertext = []byte("sealed-swapped")

		_, err := s.service.Register(s.ctx, input)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeProofInvalid))

		count, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, count, "rejected registration must leave no state")
		s.Empty(s.compliance.events, "rejected registration must leave no trail entry")

		s.Require().Len(s.security.events, 1)
		s.Equal(string(audit.EventRegisterRejected), s.security.events[0].Action)
		s.Equal("proof_invalid", s.security.events[0].Reason)
	})

	s.Run("rejects proof issued for another owner", func() {
		input := s.newInput("site-owner-swap", []byte("sealed-owner-swap"))
		input.Owner = id.OwnerID("owner-other")

		_, err := s.service.Register(s.ctx, input)
		s.True(dErrors.Is(err, dErrors.CodeProofInvalid))
	})

	s.Run("first writer wins on duplicate id", func() {
		first := s.register("site-dup")

		_, err := s.service.Register(s.ctx, s.newInput("site-dup", []byte("sealed-other")))
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeDuplicateRecord))

		stored, err := s.store.FindByID(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(first.CiphertextHandle, stored.CiphertextHandle)
	})

	s.Run("rejects empty label as validation error", func() {
		input := s.newInput("site-nolabel", []byte("sealed-nolabel"))
		input.Label = "   "

		_, err := s.service.Register(s.ctx, input)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("fails closed when the compliance trail cannot be written", func() {
		s.compliance.err = errors.New("broker unavailable")
		defer func() { s.compliance.err = nil }()

		_, err := s.service.Register(s.ctx, s.newInput("site-trail", []byte("sealed-trail")))
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeTxFailed))
	})
}

func (s *LedgerServiceSuite) TestVerify() {
	s.Run("reveals record with valid attestation", func() {
		rec := s.register("site-reveal")
		proof := s.signer.AttestReveal(s.registryCtx, rec.CiphertextHandle, 59_911_491)

		revealed, err := s.service.Verify(s.ctx, rec.ID, 59_911_491, proof)
		s.Require().NoError(err)
		s.True(revealed.Revealed)
		s.Require().NotNil(revealed.RevealedValue)
		s.Equal(int64(59_911_491), *revealed.RevealedValue)

		s.Contains(s.compliance.actions(), string(audit.EventRecordRevealed))
	})

	s.Run("rejects proof for a different value", func() {
		rec := s.register("site-badproof")
		proof := s.signer.AttestReveal(s.registryCtx, rec.CiphertextHandle, 1)

		_, err := s.service.Verify(s.ctx, rec.ID, 2, proof)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeProofInvalid))

		stored, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.False(stored.Revealed, "rejected proof must not flip the record")

		s.Require().NotEmpty(s.security.events)
		last := s.security.events[len(s.security.events)-1]
		s.Equal(string(audit.EventRevealRejected), last.Action)
	})

	s.Run("unknown record returns not registered", func() {
		proof := s.signer.AttestReveal(s.registryCtx, id.Handle("unused"), 7)

		_, err := s.service.Verify(s.ctx, id.RecordID("ghost"), 7, proof)
		s.True(dErrors.Is(err, dErrors.CodeNotRegistered))
	})

	s.Run("late verification returns the stored outcome", func() {
		rec := s.register("site-late")
		first := s.signer.AttestReveal(s.registryCtx, rec.CiphertextHandle, 100)
		second := s.signer.AttestReveal(s.registryCtx, rec.CiphertextHandle, 200)

		_, err := s.service.Verify(s.ctx, rec.ID, 100, first)
		s.Require().NoError(err)

		current, err := s.service.Verify(s.ctx, rec.ID, 200, second)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeAlreadyVerified))
		s.Require().NotNil(current, "late caller should still see the stored record")
		s.Equal(int64(100), *current.RevealedValue, "stored value must not change")
	})

	s.Run("concurrent verifications settle on exactly one value", func() {
		rec := s.register("site-race")

		const goroutines = 20

		var wg sync.WaitGroup
		var successCount atomic.Int32
		var alreadyCount atomic.Int32

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(value int64) {
				defer wg.Done()

				proof := s.signer.AttestReveal(s.registryCtx, rec.CiphertextHandle, value)
				_, err := s.service.Verify(s.ctx, rec.ID, value, proof)
				if err == nil {
					successCount.Add(1)
				} else if dErrors.Is(err, dErrors.CodeAlreadyVerified) {
					alreadyCount.Add(1)
				}
			}(int64(i))
		}
		wg.Wait()

		s.Equal(int32(1), successCount.Load(), "exactly one verification should commit")
		s.Equal(int32(goroutines-1), alreadyCount.Load(), "all others should observe the committed outcome")
	})
}

func (s *LedgerServiceSuite) TestReadPaths() {
	s.Run("get returns record and tracks the access", func() {
		rec := s.register("site-get")

		found, err := s.service.Get(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(rec.ID, found.ID)

		s.Require().NotEmpty(s.ops.events)
		s.Equal(string(audit.EventRecordFetched), s.ops.events[len(s.ops.events)-1].Action)
	})

	s.Run("get unknown record returns not registered", func() {
		_, err := s.service.Get(s.ctx, id.RecordID("nope"))
		s.True(dErrors.Is(err, dErrors.CodeNotRegistered))
	})

	s.Run("get by handle resolves sealed bytes", func() {
		rec := s.register("site-handle")

		found, err := s.service.GetByHandle(s.ctx, rec.CiphertextHandle)
		s.Require().NoError(err)
		s.Equal(rec.ID, found.ID)
		s.NotEmpty(found.Ciphertext)
	})

	s.Run("listings follow registration order", func() {
		for _, name := range []string{"list-c", "list-a", "list-b"} {
			s.register(name)
		}

		ids, err := s.service.ListIDs(s.ctx)
		s.Require().NoError(err)
		s.Equal([]id.RecordID{"list-c", "list-a", "list-b"}, ids)

		records, err := s.service.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.Equal(id.RecordID("list-c"), records[0].ID)

		count, err := s.service.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, count)
	})
}

func (s *LedgerServiceSuite) TestIsAvailable() {
	pub, _, err := attest.GenerateKey()
	s.Require().NoError(err)

	s.Run("healthy store with no extra probes", func() {
		s.True(s.service.IsAvailable(s.ctx))
	})

	s.Run("all probes passing", func() {
		svc := NewLedgerService(record.NewInMemory(), attest.NewKeyring(pub), s.registryCtx,
			WithAvailabilityProbe(func(ctx context.Context) error { return nil }),
			WithAvailabilityProbe(func(ctx context.Context) error { return nil }),
		)
		s.True(svc.IsAvailable(s.ctx))
	})

	s.Run("one failing probe means unavailable", func() {
		svc := NewLedgerService(record.NewInMemory(), attest.NewKeyring(pub), s.registryCtx,
			WithAvailabilityProbe(func(ctx context.Context) error { return nil }),
			WithAvailabilityProbe(func(ctx context.Context) error { return errors.New("redis: connection refused") }),
		)
		s.False(svc.IsAvailable(s.ctx))
	})
}
