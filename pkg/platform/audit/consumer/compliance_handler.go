package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"geoseal/internal/platform/kafka/consumer"
	id "geoseal/pkg/domain"

	"github.com/google/uuid"
)

// ComplianceHandler materializes compliance audit events into the
// audit_compliance table, the long-retention record of registrations
// and reveals.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// ComplianceStore persists compliance events keyed by their outbox event ID.
type ComplianceStore interface {
	AppendCompliance(ctx context.Context, eventID uuid.UUID, event ComplianceRecord) error
}

// ComplianceRecord is a compliance audit event ready for storage.
type ComplianceRecord struct {
	Timestamp time.Time
	OwnerID   id.OwnerID
	RecordID  string
	Action    string
	Decision  string
	Handle    string
	RequestID string
	ActorID   string
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// Handle decodes and stores one compliance event. Malformed messages commit
// rather than wedge the partition; storage failures return an error so the
// consumer retries. Compliance is the one category where dropping an event
// silently is not acceptable.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: compliance event key is not a UUID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: compliance payload did not decode",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// A compliance row without its owner and record is unusable for review.
	if payload.OwnerID == "" || payload.RecordID == "" {
		h.logger.Error("CRITICAL: compliance event missing OwnerID or RecordID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	rec := payload.record()
	if err := h.store.AppendCompliance(ctx, eventID, rec); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", rec.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", rec.Action,
		"record_id", rec.RecordID,
	)

	return nil
}
