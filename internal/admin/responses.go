package admin

import (
	"time"

	"geoseal/pkg/platform/audit"
)

// EventResponse is the HTTP DTO for one audit event. Handles are included;
// ciphertexts and clear values never enter the audit trail in the first place.
type EventResponse struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	OwnerID   string    `json:"owner_id,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
}

// EventsResponse wraps the event list with its count.
type EventsResponse struct {
	Events []EventResponse `json:"events"`
	Count  int             `json:"count"`
}

// FromEvents converts stored audit events into the response DTO.
func FromEvents(events []audit.Event) *EventsResponse {
	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, EventResponse{
			Category:  string(event.Category),
			Timestamp: event.Timestamp,
			OwnerID:   event.OwnerID.String(),
			RecordID:  event.RecordID,
			Subject:   event.Subject,
			Action:    event.Action,
			Reason:    event.Reason,
			Decision:  event.Decision,
			Handle:    event.Handle,
			RequestID: event.RequestID,
			ActorID:   event.ActorID,
		})
	}
	return &EventsResponse{Events: out, Count: len(out)}
}
