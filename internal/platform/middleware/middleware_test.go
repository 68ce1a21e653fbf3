package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v *stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

type captureAuditor struct {
	events []audit.SecurityEvent
}

func (c *captureAuditor) Emit(_ context.Context, event audit.SecurityEvent) {
	c.events = append(c.events, event)
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesInboundHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "gateway-assigned-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "gateway-assigned-id", seen)
	assert.Equal(t, "gateway-assigned-id", rec.Header().Get("X-Request-ID"))
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestContentTypeJSON_RejectsNonJSONWrites(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestContentTypeJSON_AllowsGETWithoutBody(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	auditor := &captureAuditor{}
	handler := RequireAuth(&stubValidator{}, auditor, testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
	require.Len(t, auditor.events, 1)
	assert.Equal(t, string(audit.EventAuthFailed), auditor.events[0].Action)
	assert.Equal(t, "missing_token", auditor.events[0].Reason)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	auditor := &captureAuditor{}
	validator := &stubValidator{err: errors.New("token expired")}
	handler := RequireAuth(validator, auditor, testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, auditor.events, 1)
	assert.Equal(t, "invalid_token", auditor.events[0].Reason)
}

func TestRequireAuth_ValidTokenPopulatesContext(t *testing.T) {
	validator := &stubValidator{claims: &JWTClaims{OwnerID: "owner-41"}}
	var owner id.OwnerID
	handler := RequireAuth(validator, nil, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner = GetOwnerID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, id.OwnerID("owner-41"), owner)
}

func TestRequireAuth_RejectsMalformedSubjectClaim(t *testing.T) {
	auditor := &captureAuditor{}
	validator := &stubValidator{claims: &JWTClaims{OwnerID: "has space"}}
	handler := RequireAuth(validator, auditor, testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, auditor.events, 1)
	assert.Equal(t, "malformed_subject", auditor.events[0].Reason)
}

func TestLogger_CapturesHandlerStatus(t *testing.T) {
	handler := Logger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestTimeout_PropagatesDeadline(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.True(t, ok)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
}
