package handler

import (
	"time"

	"geoseal/internal/ledger/models"
)

// RecordResponse is the public projection of a ledger record. The ciphertext
// itself is never serialized; callers who want the protected coordinate go
// through the reveal flow.
type RecordResponse struct {
	RecordID         string     `json:"record_id"`
	Label            string     `json:"label"`
	OwnerID          string     `json:"owner_id"`
	CiphertextHandle string     `json:"ciphertext_handle"`
	PublicCoord      int64      `json:"public_coord"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	RevealedValue    *int64     `json:"revealed_value,omitempty"`
	RevealedAt       *time.Time `json:"revealed_at,omitempty"`
}

// FromRecord converts a ledger record to its public response form.
func FromRecord(rec *models.Record) *RecordResponse {
	return &RecordResponse{
		RecordID:         rec.ID.String(),
		Label:            rec.Label,
		OwnerID:          rec.Owner.String(),
		CiphertextHandle: rec.CiphertextHandle.String(),
		PublicCoord:      rec.PublicCoord,
		Status:           string(rec.Status()),
		CreatedAt:        rec.CreatedAt,
		RevealedValue:    rec.RevealedValue,
		RevealedAt:       rec.RevealedAt,
	}
}

// HandleResponse is the HTTP response for GET /records/{recordID}/handle.
type HandleResponse struct {
	RecordID         string `json:"record_id"`
	CiphertextHandle string `json:"ciphertext_handle"`
}

// ListingResponse is the HTTP response for GET /records.
type ListingResponse struct {
	Count   int               `json:"count"`
	Records []*RecordResponse `json:"records"`
}

// FromRecords converts ledger records to the listing response form.
func FromRecords(records []*models.Record) *ListingResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return &ListingResponse{Count: len(out), Records: out}
}
