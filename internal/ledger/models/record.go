package models

import (
	"time"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

// RecordStatus is the lifecycle state of a record. Absence from the store is
// the implicit third state.
type RecordStatus string

const (
	StatusRegistered RecordStatus = "registered"
	StatusRevealed   RecordStatus = "revealed"
)

// Record is the aggregate root for one registered coordinate.
//
// Invariants:
//   - ID, Label, Owner, CiphertextHandle, Ciphertext, CreatedAt are immutable
//     after construction
//   - Revealed is monotonic: false -> true, at most once, never reversed
//   - RevealedValue and RevealedAt are set exactly once, by a successful
//     verification, never by direct write
//   - PublicCoord carries no confidentiality guarantee and is readable in
//     every state
type Record struct {
	ID               id.RecordID `json:"id"`
	Label            string      `json:"label"`
	Owner            id.OwnerID  `json:"owner"`
	CiphertextHandle id.Handle   `json:"ciphertext_handle"`
	// Ciphertext is the sealed coordinate. It never serializes; readers get
	// the handle and ask the decryption authority for the rest.
	Ciphertext    []byte     `json:"-"`
	PublicCoord   int64      `json:"public_coord"`
	CreatedAt     time.Time  `json:"created_at"`
	Revealed      bool       `json:"revealed"`
	RevealedValue *int64     `json:"revealed_value,omitempty"`
	RevealedAt    *time.Time `json:"revealed_at,omitempty"`
}

// NewRecord constructs a registered, unrevealed record, enforcing construction
// invariants.
func NewRecord(recordID id.RecordID, label string, owner id.OwnerID, handle id.Handle, ciphertext []byte, publicCoord int64, now time.Time) (*Record, error) {
	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record id cannot be empty")
	}
	if label == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "label cannot be empty")
	}
	if len(label) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "label must be 128 characters or less")
	}
	if owner == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner cannot be empty")
	}
	if handle == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ciphertext handle cannot be empty")
	}
	if len(ciphertext) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ciphertext cannot be empty")
	}
	return &Record{
		ID:               recordID,
		Label:            label,
		Owner:            owner,
		CiphertextHandle: handle,
		Ciphertext:       ciphertext,
		PublicCoord:      publicCoord,
		CreatedAt:        now,
	}, nil
}

// Status derives the lifecycle state from the revealed flag.
func (r *Record) Status() RecordStatus {
	if r.Revealed {
		return StatusRevealed
	}
	return StatusRegistered
}

// CanReveal checks whether the record may transition to revealed.
// Use with ApplyReveal in Execute callbacks so the lock covers both.
func (r *Record) CanReveal() error {
	if r.Revealed {
		return dErrors.New(dErrors.CodeInvariantViolation, "record is already revealed")
	}
	return nil
}

// ApplyReveal transitions the record to its terminal revealed state.
// Call CanReveal first to validate the transition.
func (r *Record) ApplyReveal(value int64, now time.Time) {
	r.Revealed = true
	r.RevealedValue = &value
	r.RevealedAt = &now
}

// Reveal validates and applies the reveal in one call.
// Prefer CanReveal + ApplyReveal for Execute callback pattern.
func (r *Record) Reveal(value int64, now time.Time) error {
	if err := r.CanReveal(); err != nil {
		return err
	}
	r.ApplyReveal(value, now)
	return nil
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (r *Record) Clone() *Record {
	out := *r
	out.Ciphertext = append([]byte(nil), r.Ciphertext...)
	if r.RevealedValue != nil {
		v := *r.RevealedValue
		out.RevealedValue = &v
	}
	if r.RevealedAt != nil {
		t := *r.RevealedAt
		out.RevealedAt = &t
	}
	return &out
}
