package service

import (
	"context"
	"log/slog"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/audit"
	"geoseal/pkg/requestcontext"
)

// auditEmitter fans ledger events out to the log and the category publishers.
// Compliance events are fail-closed: an emit error propagates so the caller's
// transaction aborts. Security and ops events are best-effort.
type auditEmitter struct {
	logger     *slog.Logger
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsTracker
}

func newAuditEmitter(cfg *serviceConfig) *auditEmitter {
	return &auditEmitter{
		logger:     cfg.logger,
		compliance: cfg.compliance,
		security:   cfg.security,
		ops:        cfg.ops,
	}
}

func (e *auditEmitter) log(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if e.logger != nil {
		e.logger.InfoContext(ctx, event, args...)
	}
}

func (e *auditEmitter) emitRecordRegistered(ctx context.Context, event models.RecordRegistered) error {
	e.log(ctx, string(audit.EventRecordRegistered),
		"record_id", event.RecordID,
		"owner_id", event.Owner,
		"handle", event.Handle,
	)
	if e.compliance == nil {
		return nil
	}
	err := e.compliance.Emit(ctx, audit.ComplianceEvent{
		Timestamp: requestcontext.Now(ctx),
		OwnerID:   event.Owner,
		RecordID:  event.RecordID.String(),
		Action:    string(audit.EventRecordRegistered),
		Decision:  "registered",
		Handle:    event.Handle.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTxFailed, "audit trail write failed")
	}
	return nil
}

func (e *auditEmitter) emitRecordRevealed(ctx context.Context, event models.RecordRevealed) error {
	e.log(ctx, string(audit.EventRecordRevealed),
		"record_id", event.RecordID,
		"owner_id", event.Owner,
		"handle", event.Handle,
	)
	if e.compliance == nil {
		return nil
	}
	err := e.compliance.Emit(ctx, audit.ComplianceEvent{
		Timestamp: requestcontext.Now(ctx),
		OwnerID:   event.Owner,
		RecordID:  event.RecordID.String(),
		Action:    string(audit.EventRecordRevealed),
		Decision:  "revealed",
		Handle:    event.Handle.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTxFailed, "audit trail write failed")
	}
	return nil
}

func (e *auditEmitter) emitRegisterRejected(ctx context.Context, recordID id.RecordID, owner id.OwnerID, handle id.Handle, reason string) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, "registration rejected",
			"record_id", recordID,
			"owner_id", owner,
			"handle", handle,
			"reason", reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if e.security == nil {
		return
	}
	e.security.Emit(ctx, audit.SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   recordID.String(),
		Action:    string(audit.EventRegisterRejected),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   owner.String(),
		Severity:  audit.SeverityWarning,
	})
}

func (e *auditEmitter) emitRevealRejected(ctx context.Context, recordID id.RecordID, handle id.Handle, reason string) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, "reveal rejected",
			"record_id", recordID,
			"handle", handle,
			"reason", reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if e.security == nil {
		return
	}
	e.security.Emit(ctx, audit.SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   recordID.String(),
		Action:    string(audit.EventRevealRejected),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})
}

func (e *auditEmitter) trackRecordFetched(ctx context.Context, recordID id.RecordID) {
	if e.ops == nil {
		return
	}
	e.ops.Track(ctx, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   recordID.String(),
		Action:    string(audit.EventRecordFetched),
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (e *auditEmitter) trackRegistryListed(ctx context.Context) {
	if e.ops == nil {
		return
	}
	e.ops.Track(ctx, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   "registry",
		Action:    string(audit.EventRegistryListed),
		RequestID: requestcontext.RequestID(ctx),
	})
}
