// Package domain provides typed identifiers used across service boundaries.
// Parsing happens once at trust boundaries (HTTP, token claims, wire formats);
// interior code passes the typed values and never re-validates.
package domain

import (
	"strings"

	dErrors "geoseal/pkg/domain-errors"
)

const (
	maxRecordIDLength  = 128
	maxOwnerIDLength   = 128
	maxContextIDLength = 64
	handleHexLength    = 64
)

// RecordID is the caller-chosen ledger key. Immutable once registered, never
// reused. Restricted to a URL- and log-safe charset.
type RecordID string

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id is required")
	}
	if len(s) > maxRecordIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id exceeds max length")
	}
	if !isSafeToken(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record id contains invalid characters")
	}
	return RecordID(s), nil
}

func (id RecordID) String() string { return string(id) }

// OwnerID identifies the creator of a record. It arrives from token claims
// and is stored verbatim; format is scheme-agnostic (wallet address, UUID,
// opaque subject) but must be printable and whitespace-free.
type OwnerID string

// ParseOwnerID validates and returns an OwnerID.
func ParseOwnerID(s string) (OwnerID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if len(s) > maxOwnerIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner id exceeds max length")
	}
	for _, r := range s {
		if r <= 0x20 || r >= 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "owner id contains invalid characters")
		}
	}
	return OwnerID(s), nil
}

func (id OwnerID) String() string { return string(id) }

// ContextID names the system instance ciphertexts and proofs are bound to.
// A ciphertext produced for one context must not validate under another.
type ContextID string

// ParseContextID validates and returns a ContextID.
func ParseContextID(s string) (ContextID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "context id is required")
	}
	if len(s) > maxContextIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "context id exceeds max length")
	}
	if !isSafeToken(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "context id contains invalid characters")
	}
	return ContextID(s), nil
}

func (id ContextID) String() string { return string(id) }

// Handle is the opaque reference to an encrypted value held by the ledger.
// Wire form is 64 lowercase hex characters (a 256-bit digest).
type Handle string

// ParseHandle validates and returns a Handle.
func ParseHandle(s string) (Handle, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ciphertext handle is required")
	}
	if len(s) != handleHexLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ciphertext handle must be 64 hex characters")
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "ciphertext handle must be lowercase hex")
		}
	}
	return Handle(s), nil
}

func (h Handle) String() string { return string(h) }

// isSafeToken accepts letters, digits, and the separators . _ - used in
// caller-facing identifiers. Rejects whitespace, control characters, and
// anything that needs escaping in URLs, SQL logs, or cache keys.
func isSafeToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, ".") && !strings.HasPrefix(s, "-")
}
