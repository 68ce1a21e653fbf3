package audit

import (
	"time"

	id "geoseal/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: coordinate registration, verified reveals.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: rejected attestations, failed reveal proofs, auth failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: record lookups, registry listings, backend lifecycle changes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	OwnerID   id.OwnerID
	RecordID  string
	Subject   string
	Action    string
	Reason    string
	Decision  string
	// Handle is the ciphertext handle involved, when the event concerns a
	// sealed value. Handles are safe to log; ciphertexts and clear values
	// are not.
	Handle    string
	RequestID string
	// ActorID tracks who performed the action when different from OwnerID.
	// Used for operator actions taken on a registrant's behalf.
	ActorID string
}

type AuditEvent string

const (
	// Registration events
	EventRecordRegistered AuditEvent = "record_registered"
	EventRegisterRejected AuditEvent = "register_rejected"

	// Reveal events
	EventRecordRevealed  AuditEvent = "record_revealed"
	EventRevealRejected  AuditEvent = "reveal_rejected"
	EventRevealCancelled AuditEvent = "reveal_cancelled"
	EventOracleTimeout   AuditEvent = "oracle_timeout"

	// Access events
	EventRecordFetched  AuditEvent = "record_fetched"
	EventRegistryListed AuditEvent = "registry_listed"
	EventAuthFailed     AuditEvent = "auth_failed"

	// Encryption backend lifecycle events
	EventEncryptionReady      AuditEvent = "encryption_ready"
	EventEncryptionInitFailed AuditEvent = "encryption_init_failed"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - the registry's write history must be reconstructible
	EventRecordRegistered: CategoryCompliance,
	EventRecordRevealed:   CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventRegisterRejected: CategorySecurity,
	EventRevealRejected:   CategorySecurity,
	EventAuthFailed:       CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventRevealCancelled:      CategoryOperations,
	EventOracleTimeout:        CategoryOperations,
	EventRecordFetched:        CategoryOperations,
	EventRegistryListed:       CategoryOperations,
	EventEncryptionReady:      CategoryOperations,
	EventEncryptionInitFailed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring guaranteed persistence.
// Every registered coordinate and every verified reveal must leave a trace.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time  // When the event occurred (set automatically if zero)
	OwnerID   id.OwnerID // The registrant affected (required)
	RecordID  string     // The record involved (required)
	Action    string     // The action taken (e.g., "record_registered")
	Decision  string     // Outcome of the action (e.g., "registered", "revealed")
	Handle    string     // Ciphertext handle (safe for retention; carries no plaintext)
	RequestID string     // Correlation ID for request tracing
	ActorID   string     // Operator who performed action (if different from OwnerID)
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e ComplianceEvent) ToLegacyEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		OwnerID:   e.OwnerID,
		RecordID:  e.RecordID,
		Action:    e.Action,
		Decision:  e.Decision,
		Handle:    e.Handle,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Events are processed asynchronously with buffering and retry.
// Use with the security publisher for non-blocking emission.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (record_id, owner_id, IP)
	Action    string    // Security action (e.g., "reveal_rejected")
	Reason    string    // Why this happened (e.g., "proof_invalid", "unknown_key")
	IP        string    // Client IP address (critical for security forensics)
	RequestID string    // Correlation ID
	ActorID   string    // Actor if different from subject
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e SecurityEvent) ToLegacyEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
// Use with the ops tracker for non-blocking, sampled emission.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved
	Action    string    // Operational action (e.g., "record_fetched")
	RequestID string    // Correlation ID
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e OpsEvent) ToLegacyEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
