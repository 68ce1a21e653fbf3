package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "geoseal/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDesc   string
		descHidden bool
	}{
		{
			name:       "internal errors hide their description",
			err:        dErrors.New(dErrors.CodeInternal, "pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
			descHidden: true,
		},
		{
			name:       "bad request carries its description",
			err:        dErrors.New(dErrors.CodeBadRequest, "body is not valid JSON"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
			wantDesc:   "body is not valid JSON",
		},
		{
			name:       "not registered maps to 404",
			err:        dErrors.New(dErrors.CodeNotRegistered, "no record with id loc-9"),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_registered",
			wantDesc:   "no record with id loc-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["error"] != tt.wantCode {
				t.Fatalf("error = %q, want %q", body["error"], tt.wantCode)
			}

			desc, present := body["error_description"]
			if tt.descHidden && present {
				t.Fatalf("error_description should be hidden, got %q", desc)
			}
			if !tt.descHidden && desc != tt.wantDesc {
				t.Fatalf("error_description = %q, want %q", desc, tt.wantDesc)
			}
		})
	}
}

func TestWriteError_UncodedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["error_description"]; ok {
		t.Fatal("uncoded errors must not leak their message")
	}
}

type probeRequest struct {
	Label string `json:"label"`
}

func (r *probeRequest) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("valid body decodes", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":"Rex"}`))

		req, ok := DecodeAndPrepare[probeRequest](w, r, nil, r.Context(), "req-1")
		if !ok {
			t.Fatalf("expected decode to succeed, response: %s", w.Body.String())
		}
		if req.Label != "Rex" {
			t.Fatalf("expected label Rex, got %q", req.Label)
		}
	})

	t.Run("malformed JSON writes bad_request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":`))

		_, ok := DecodeAndPrepare[probeRequest](w, r, nil, r.Context(), "req-2")
		if ok {
			t.Fatal("expected decode to fail")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("failed validation writes the domain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":"  "}`))

		_, ok := DecodeAndPrepare[probeRequest](w, r, nil, r.Context(), "req-3")
		if ok {
			t.Fatal("expected validation to fail")
		}
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected error code validation_error, got %q", body["error"])
		}
	})
}
