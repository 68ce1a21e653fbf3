package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

// RevealRecord runs the reveal flow. Fast path: an already revealed record
// returns its stored value with no authority round trip. Slow path: one
// verified decryption, submitted to the ledger before the value is trusted.
// A concurrent reveal that committed first is absorbed; the ledger reports
// the stored value and the flow returns it unchanged.
func (s *Service) RevealRecord(ctx context.Context, recordID id.RecordID) (_ *models.Record, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registrar.RevealRecord",
		trace.WithAttributes(attribute.String("record.id", string(recordID))),
	)
	defer span.End()
	defer func() {
		s.observeFlow(flowReveal, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
	}()

	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "record id is required")
	}

	if err = s.inflight.begin(recordID); err != nil {
		s.incrementInFlightRejection()
		return nil, err
	}
	defer s.inflight.end(recordID)

	rec, err := s.ledger.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Revealed {
		span.SetAttributes(attribute.Bool("reveal.fast_path", true))
		return rec, nil
	}

	var revealed *models.Record
	submit := func(ctx context.Context, handle id.Handle, value int64, proof []byte) error {
		current, verifyErr := s.ledger.Verify(ctx, recordID, value, proof)
		if verifyErr != nil {
			// A reveal that raced this one and won already made the value
			// canonical. Absorb it; the stored record is the outcome.
			if dErrors.HasCode(verifyErr, dErrors.CodeAlreadyVerified) && current != nil {
				revealed = current
				return nil
			}
			return verifyErr
		}
		revealed = current
		return nil
	}

	revealCtx := ctx
	if s.revealTimeout > 0 {
		var cancel context.CancelFunc
		revealCtx, cancel = context.WithTimeout(ctx, s.revealTimeout)
		defer cancel()
	}
	if _, err = s.revealer.Reveal(revealCtx, []id.Handle{rec.CiphertextHandle}, submit); err != nil {
		err = finalize(ctx, err, "reveal did not reach durability")
		s.trackRevealFailure(ctx, recordID, err)
		return nil, err
	}
	if revealed == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reveal flow finished without a committed record")
	}

	done := context.WithoutCancel(ctx)
	s.invalidateListing(done)
	s.logger.InfoContext(done, "record revealed",
		"record_id", revealed.ID,
		"handle", revealed.CiphertextHandle,
	)
	return revealed, nil
}
