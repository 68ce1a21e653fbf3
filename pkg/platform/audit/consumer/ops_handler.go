package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"geoseal/internal/platform/kafka/consumer"

	"github.com/google/uuid"
)

// OpsHandler materializes operational audit events, fetches, listings and
// encryption lifecycle notices, into the short-retention audit_ops table.
type OpsHandler struct {
	store  OpsStore
	logger *slog.Logger
}

// OpsStore persists ops events keyed by their outbox event ID.
type OpsStore interface {
	AppendOps(ctx context.Context, eventID uuid.UUID, event OpsRecord) error
}

// OpsRecord is an operational audit event ready for storage.
type OpsRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	RequestID string
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(store OpsStore, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		store:  store,
		logger: logger,
	}
}

// Handle decodes and stores one ops event. The whole category is
// best-effort: every outcome commits, including storage failures, and
// problems surface only at debug level.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Debug("ops event key is not a UUID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload opsPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("ops payload did not decode",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	rec := payload.record()
	if err := h.store.AppendOps(ctx, eventID, rec); err != nil {
		h.logger.Debug("failed to store ops event",
			"event_id", eventID,
			"action", rec.Action,
			"error", err,
		)
	}

	return nil
}
