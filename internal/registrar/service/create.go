package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"geoseal/internal/ledger/models"
	ledger "geoseal/internal/ledger/service"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/fixedpoint"
)

const (
	maxLatitude  = 90 * fixedpoint.Scale
	maxLongitude = 180 * fixedpoint.Scale
)

// CreateInput carries one registration request through the create flow.
// Coordinates arrive already scaled to fixed-point form; the latitude is the
// confidential field, the longitude stays public.
type CreateInput struct {
	RecordID  id.RecordID
	Label     string
	Owner     id.OwnerID
	Latitude  int64
	Longitude int64
}

func (in *CreateInput) validate() error {
	if in.RecordID == "" {
		return dErrors.New(dErrors.CodeValidation, "record id is required")
	}
	if in.Owner == "" {
		return dErrors.New(dErrors.CodeValidation, "owner is required")
	}
	if strings.TrimSpace(in.Label) == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	if in.Latitude < -maxLatitude || in.Latitude > maxLatitude {
		return dErrors.New(dErrors.CodeValidation, "latitude is out of range")
	}
	if in.Longitude < -maxLongitude || in.Longitude > maxLongitude {
		return dErrors.New(dErrors.CodeValidation, "longitude is out of range")
	}
	return nil
}

// CreateRecord runs the create flow: validate, seal the latitude, commit the
// record with the longitude in plaintext, then drop the cached listing. The
// latitude never leaves the process unsealed, and validation failures cost
// no capability round trip.
func (s *Service) CreateRecord(ctx context.Context, input CreateInput) (_ *models.Record, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registrar.CreateRecord",
		trace.WithAttributes(attribute.String("record.id", string(input.RecordID))),
	)
	defer span.End()
	defer func() {
		s.observeFlow(flowCreate, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
	}()

	if err = input.validate(); err != nil {
		return nil, err
	}

	if err = s.inflight.begin(input.RecordID); err != nil {
		s.incrementInFlightRejection()
		return nil, err
	}
	defer s.inflight.end(input.RecordID)

	ct, err := s.encrypter.Encrypt(ctx, input.Owner, input.Latitude)
	if err != nil {
		return nil, err
	}

	rec, err := s.ledger.Register(ctx, ledger.RegisterInput{
		RecordID:    input.RecordID,
		Label:       input.Label,
		Owner:       input.Owner,
		Handle:      ct.Handle,
		Ciphertext:  ct.Bytes,
		InputProof:  ct.Proof,
		PublicCoord: input.Longitude,
	})
	if err != nil {
		return nil, finalize(ctx, err, "registration did not reach durability")
	}

	// The record is durable at this point. Cache maintenance and the flow
	// log must not be lost to a caller that has already walked away.
	done := context.WithoutCancel(ctx)
	s.invalidateListing(done)
	s.logger.InfoContext(done, "record registered",
		"record_id", rec.ID,
		"owner_id", rec.Owner,
		"handle", rec.CiphertextHandle,
	)
	return rec, nil
}
