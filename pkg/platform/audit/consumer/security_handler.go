package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"geoseal/internal/platform/kafka/consumer"

	"github.com/google/uuid"
)

// SecurityHandler materializes security audit events, rejected writes and
// auth failures, into the audit_security table for SIEM export.
type SecurityHandler struct {
	store  SecurityStore
	logger *slog.Logger
}

// SecurityStore persists security events keyed by their outbox event ID.
type SecurityStore interface {
	AppendSecurity(ctx context.Context, eventID uuid.UUID, event SecurityRecord) error
}

// SecurityRecord is a security audit event ready for storage.
type SecurityRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	Reason    string
	IP        string
	RequestID string
	ActorID   string
	Severity  string
}

// NewSecurityHandler creates a security event handler.
func NewSecurityHandler(store SecurityStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		store:  store,
		logger: logger,
	}
}

// Handle decodes and stores one security event. Malformed messages commit;
// storage failures return an error so the consumer retries.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("security event key is not a UUID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload securityPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("security payload did not decode",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	rec := payload.record()
	if err := h.store.AppendSecurity(ctx, eventID, rec); err != nil {
		h.logger.Error("failed to store security event",
			"event_id", eventID,
			"action", rec.Action,
			"error", err,
		)
		return fmt.Errorf("store security event: %w", err)
	}

	h.logger.Debug("stored security event",
		"event_id", eventID,
		"action", rec.Action,
		"severity", rec.Severity,
	)

	return nil
}
