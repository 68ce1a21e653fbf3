package consumer

import (
	"time"

	id "geoseal/pkg/domain"
)

// The payload types mirror the JSON written into the outbox by the audit
// store. Field names match the relay's wire format, not Go conventions.

type compliancePayload struct {
	Timestamp string `json:"Timestamp"`
	OwnerID   string `json:"OwnerID"`
	RecordID  string `json:"RecordID"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision"`
	Handle    string `json:"Handle"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
}

func (p compliancePayload) record() ComplianceRecord {
	return ComplianceRecord{
		Timestamp: parseEventTime(p.Timestamp),
		OwnerID:   id.OwnerID(p.OwnerID),
		RecordID:  p.RecordID,
		Action:    p.Action,
		Decision:  p.Decision,
		Handle:    p.Handle,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
	}
}

type securityPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason"`
	IP        string `json:"IP"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
	Severity  string `json:"Severity"`
}

func (p securityPayload) record() SecurityRecord {
	rec := SecurityRecord{
		Timestamp: parseEventTime(p.Timestamp),
		Subject:   p.Subject,
		Action:    p.Action,
		Reason:    p.Reason,
		IP:        p.IP,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
		Severity:  p.Severity,
	}
	// Producers rarely set severity; default it rather than store blanks.
	if rec.Severity == "" {
		rec.Severity = "info"
	}
	return rec
}

type opsPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	RequestID string `json:"RequestID"`
}

func (p opsPayload) record() OpsRecord {
	return OpsRecord{
		Timestamp: parseEventTime(p.Timestamp),
		Subject:   p.Subject,
		Action:    p.Action,
		RequestID: p.RequestID,
	}
}

// parseEventTime reads the RFC3339Nano timestamp the outbox relay carries.
// A missing or mangled value falls back to the consume time, so a bad clock
// field never keeps an event out of the tables.
func parseEventTime(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Now()
	}
	return ts
}
