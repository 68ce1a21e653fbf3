package handler

import (
	"time"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
)

// CreatedResponse confirms a committed registration. The ciphertext itself
// never serializes; callers hold its handle.
type CreatedResponse struct {
	RecordID         id.RecordID `json:"record_id"`
	Label            string      `json:"label"`
	OwnerID          id.OwnerID  `json:"owner_id"`
	CiphertextHandle id.Handle   `json:"ciphertext_handle"`
	PublicCoord      int64       `json:"public_coord"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// FromRecordCreated converts a committed record to the creation response.
func FromRecordCreated(rec *models.Record) *CreatedResponse {
	return &CreatedResponse{
		RecordID:         rec.ID,
		Label:            rec.Label,
		OwnerID:          rec.Owner,
		CiphertextHandle: rec.CiphertextHandle,
		PublicCoord:      rec.PublicCoord,
		Status:           string(rec.Status()),
		CreatedAt:        rec.CreatedAt,
	}
}

// RevealedResponse carries the canonical value after a completed reveal flow.
type RevealedResponse struct {
	RecordID      id.RecordID `json:"record_id"`
	RevealedValue int64       `json:"revealed_value"`
	RevealedAt    time.Time   `json:"revealed_at"`
	PublicCoord   int64       `json:"public_coord"`
}

// FromRecordRevealed converts a revealed record to the reveal response.
func FromRecordRevealed(rec *models.Record) *RevealedResponse {
	resp := &RevealedResponse{
		RecordID:    rec.ID,
		PublicCoord: rec.PublicCoord,
	}
	if rec.RevealedValue != nil {
		resp.RevealedValue = *rec.RevealedValue
	}
	if rec.RevealedAt != nil {
		resp.RevealedAt = *rec.RevealedAt
	}
	return resp
}
