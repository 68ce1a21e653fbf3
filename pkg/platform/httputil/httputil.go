// Package httputil centralizes JSON response writing and request decoding so
// handlers stay thin and error envelopes stay consistent across endpoints.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "geoseal/pkg/domain-errors"
)

// Validatable is implemented by request types that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// errorResponse is the JSON error envelope shared by all endpoints.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to the JSON error envelope. Internal
// errors (and errors carrying no code) omit the description so infrastructure
// details never reach clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message()
		}
	}

	WriteJSON(w, status, resp)
}

// DecodeAndPrepare decodes the request body into T, then runs its Validate
// method. On failure it writes the error response and returns ok=false so
// handlers can bail with a bare return.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "invalid request body",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		WriteError(w, err)
		return nil, false
	}

	return req, true
}
