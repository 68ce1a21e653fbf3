package main

import (
	"context"

	"github.com/google/uuid"

	"geoseal/pkg/platform/audit"
	auditconsumer "geoseal/pkg/platform/audit/consumer"
	auditpg "geoseal/pkg/platform/audit/store/postgres"
)

// The consumer handlers each declare the slice of storage they need; these
// sinks map their records onto the Postgres audit tables. Every sink writes
// the category table, which carries its own retention, and the unified
// audit_events table the operator surface reads. Both inserts are idempotent,
// so Kafka redelivery is harmless.

type complianceSink struct {
	store *auditpg.Store
}

func (s complianceSink) AppendCompliance(ctx context.Context, eventID uuid.UUID, rec auditconsumer.ComplianceRecord) error {
	if err := s.store.AppendCompliance(ctx, eventID, auditpg.ComplianceRecord{
		Timestamp: rec.Timestamp,
		OwnerID:   rec.OwnerID,
		RecordID:  rec.RecordID,
		Action:    rec.Action,
		Decision:  rec.Decision,
		Handle:    rec.Handle,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: rec.Timestamp,
		OwnerID:   rec.OwnerID,
		RecordID:  rec.RecordID,
		Action:    rec.Action,
		Decision:  rec.Decision,
		Handle:    rec.Handle,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	})
}

type securitySink struct {
	store *auditpg.Store
}

func (s securitySink) AppendSecurity(ctx context.Context, eventID uuid.UUID, rec auditconsumer.SecurityRecord) error {
	if err := s.store.AppendSecurity(ctx, eventID, auditpg.SecurityRecord{
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		Reason:    rec.Reason,
		IP:        rec.IP,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
		Severity:  rec.Severity,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		Reason:    rec.Reason,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	})
}

type opsSink struct {
	store *auditpg.Store
}

func (s opsSink) AppendOps(ctx context.Context, eventID uuid.UUID, rec auditconsumer.OpsRecord) error {
	if err := s.store.AppendOps(ctx, eventID, auditpg.OpsRecord{
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		RequestID: rec.RequestID,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		RequestID: rec.RequestID,
	})
}
