// Package dErrors provides coded domain errors shared across services.
// Services create or wrap errors with a Code; transports translate codes to
// their own status vocabulary. Checking is done by code, not by sentinel
// equality, so layers stay decoupled from each other's error values.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a domain error. The string form is the wire
// form used in HTTP error envelopes.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Ledger and reveal-protocol codes.
	CodeDuplicateRecord       Code = "duplicate_record"
	CodeNotRegistered         Code = "not_registered"
	CodeAlreadyVerified       Code = "already_verified"
	CodeProofInvalid          Code = "proof_invalid"
	CodeEncryptionUnavailable Code = "encryption_unavailable"
	CodeOracleTimeout         Code = "oracle_timeout"
	CodeCancelled             Code = "cancelled"
	CodeTxFailed              Code = "transaction_failed"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	code  Code
	msg   string
	cause error
}

// New creates a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error. The cause remains
// reachable through errors.Unwrap for logging and tests.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two coded errors by code and message, so tests can assert with
// errors.Is against a freshly constructed expectation.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.code == te.code && e.msg == te.msg
}

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the message without the cause chain. Transports use this
// for client-facing descriptions so internal details do not leak.
func (e *Error) Message() string { return e.msg }

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for {
		if !errors.As(err, &de) {
			return false
		}
		if de.code == code {
			return true
		}
		err = de.cause
	}
}

// Is is a readable alias for HasCode at call sites that check a single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status transports should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeValidation, CodeProofInvalid:
		return http.StatusUnprocessableEntity
	case CodeNotFound, CodeNotRegistered:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateRecord, CodeAlreadyVerified:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout, CodeOracleTimeout:
		return http.StatusGatewayTimeout
	case CodeEncryptionUnavailable:
		return http.StatusServiceUnavailable
	case CodeCancelled:
		return http.StatusRequestTimeout
	case CodeTxFailed, CodeInvariantViolation, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
