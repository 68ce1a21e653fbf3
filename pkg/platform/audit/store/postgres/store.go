package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "geoseal/pkg/domain"
	audit "geoseal/pkg/platform/audit"
	txcontext "geoseal/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// relay. Kafka is the source of truth for audit events.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	OwnerID   string `json:"OwnerID,omitempty"`
	RecordID  string `json:"RecordID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason,omitempty"`
	Decision  string `json:"Decision,omitempty"`
	Handle    string `json:"Handle,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
// When the context carries a transaction, the outbox entry commits or rolls
// back with the ledger write it accompanies.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	// Build JSON payload for Kafka
	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		OwnerID:   string(event.OwnerID),
		RecordID:  event.RecordID,
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		Decision:  event.Decision,
		Handle:    event.Handle,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Determine aggregate type and ID
	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.RecordID != "" {
		aggregateType = "record"
		aggregateID = event.RecordID
	} else if event.OwnerID != "" {
		aggregateType = "owner"
		aggregateID = string(event.OwnerID)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a specific ID.
// Used by the Kafka consumer to materialize events for querying.
// This is idempotent - duplicate inserts are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, owner_id, record_id, subject, action,
			reason, decision, handle, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	var ownerID *string
	if event.OwnerID != "" {
		o := string(event.OwnerID)
		ownerID = &o
	}

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		ownerID,
		event.RecordID,
		event.Subject,
		event.Action,
		event.Reason,
		event.Decision,
		event.Handle,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByOwner returns events for a specific owner.
func (s *Store) ListByOwner(ctx context.Context, owner id.OwnerID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, owner_id, record_id, subject, action,
			   reason, decision, handle, request_id, actor_id
		FROM audit_events
		WHERE owner_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListAll returns all audit events (operator only).
func (s *Store) ListAll(ctx context.Context) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, owner_id, record_id, subject, action,
			   reason, decision, handle, request_id, actor_id
		FROM audit_events
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, owner_id, record_id, subject, action,
			   reason, decision, handle, request_id, actor_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category      string
			event         audit.Event
			ownerNullable *string
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&ownerNullable,
			&event.RecordID,
			&event.Subject,
			&event.Action,
			&event.Reason,
			&event.Decision,
			&event.Handle,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		if ownerNullable != nil {
			event.OwnerID = id.OwnerID(*ownerNullable)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// -----------------------------------------------------------------------------
// Category-specific storage methods for partitioned tables
// -----------------------------------------------------------------------------

// ComplianceRecord represents a compliance audit event for the audit_compliance table.
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

// AppendCompliance inserts a compliance event into the audit_compliance table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendCompliance(ctx context.Context, eventID uuid.UUID, record ComplianceRecord) error {
	query := `
		INSERT INTO audit_compliance (
			id, timestamp, owner_id, record_id, action,
			decision, handle, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		string(record.OwnerID),
		record.RecordID,
		record.Action,
		record.Decision,
		record.Handle,
		record.RequestID,
		record.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert compliance event: %w", err)
	}
	return nil
}

// SecurityRecord represents a security audit event for the audit_security table.
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

// AppendSecurity inserts a security event into the audit_security table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendSecurity(ctx context.Context, eventID uuid.UUID, record SecurityRecord) error {
	query := `
		INSERT INTO audit_security (
			id, timestamp, subject, action, reason,
			ip, request_id, actor_id, severity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.Reason,
		record.IP,
		record.RequestID,
		record.ActorID,
		record.Severity,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// OpsRecord represents an operational audit event for the audit_ops table.
type OpsRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	RequestID string
}

// AppendOps inserts an ops event into the audit_ops table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendOps(ctx context.Context, eventID uuid.UUID, record OpsRecord) error {
	query := `
		INSERT INTO audit_ops (
			id, timestamp, subject, action, request_id
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id, timestamp) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert ops event: %w", err)
	}
	return nil
}
