package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"geoseal/internal/fhe"
	jwttoken "geoseal/internal/jwt_token"
	"geoseal/internal/platform/middleware"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
)

type routes func(r chi.Router)

func (f routes) Register(r chi.Router) { f(r) }

type staticBackend struct {
	state fhe.State
	err   error
}

func (b staticBackend) State() fhe.State { return b.state }
func (b staticBackend) InitErr() error   { return b.err }

type staticLedger bool

func (a staticLedger) IsAvailable(context.Context) bool { return bool(a) }

type discardAuditor struct{}

func (discardAuditor) Emit(context.Context, audit.SecurityEvent) {}

func testJWT(t *testing.T) (middleware.JWTValidator, string) {
	t.Helper()

	svc := jwttoken.NewJWTService("test-signing-key", "geoseal-test", "geoseal-clients")
	token, err := svc.GenerateAccessToken(id.OwnerID("owner-1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return jwttoken.NewJWTServiceAdapter(svc), token
}

func testDeps(t *testing.T) Deps {
	t.Helper()

	validator, _ := testJWT(t)
	return Deps{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		JWTValidator:    validator,
		SecurityAuditor: discardAuditor{},
		Reads: routes(func(r chi.Router) {
			r.Get("/records", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"records":[],"count":0}`))
			})
		}),
		Writes: routes(func(r chi.Router) {
			r.Post("/records", func(w http.ResponseWriter, r *http.Request) {
				owner := middleware.GetOwnerID(r.Context())
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"owner":"` + owner.String() + `"}`))
			})
		}),
		Health: NewHealthHandler(staticBackend{state: fhe.StateReady}, staticLedger(true)),
	}
}

func TestRouterMountsProbes(t *testing.T) {
	router := NewRouter(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz returned %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status  string `json:"status"`
		Backend string `json:"backend"`
		Ledger  string `json:"ledger"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode readyz body: %v", err)
	}
	if body.Status != "ready" || body.Backend != "ready" || body.Ledger != "available" {
		t.Errorf("unexpected readiness report: %+v", body)
	}
}

func TestReadinessReportsFailedBackend(t *testing.T) {
	deps := testDeps(t)
	deps.Health = NewHealthHandler(
		staticBackend{state: fhe.StateFailed, err: errors.New("key generation failed")},
		staticLedger(true),
	)
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz returned %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body struct {
		Status       string `json:"status"`
		BackendError string `json:"backend_error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode readyz body: %v", err)
	}
	if body.Status != "unavailable" {
		t.Errorf("status = %q, want unavailable", body.Status)
	}
	if body.BackendError != "key generation failed" {
		t.Errorf("backend_error = %q, want the init failure", body.BackendError)
	}
}

func TestReadinessReportsUnavailableLedger(t *testing.T) {
	deps := testDeps(t)
	deps.Health = NewHealthHandler(staticBackend{state: fhe.StateReady}, staticLedger(false))
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz returned %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := NewRouter(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics returned %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadsArePublic(t *testing.T) {
	router := NewRouter(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unauthenticated read returned %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestWritesRequireBearerToken(t *testing.T) {
	deps := testDeps(t)
	validator, token := testJWT(t)
	deps.JWTValidator = validator
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated write returned %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("authenticated write returned %d, want %d", rec.Code, http.StatusCreated)
	}
	if !strings.Contains(rec.Body.String(), "owner-1") {
		t.Errorf("handler did not see the authenticated owner: %s", rec.Body.String())
	}
}

func TestWriteRejectsNonJSONBody(t *testing.T) {
	deps := testDeps(t)
	validator, token := testJWT(t)
	deps.JWTValidator = validator
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader("coord=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form-encoded write returned %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("X-Request-ID = %q, want the inbound id echoed", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a minted request id on the response")
	}
}

func TestOperatorSurfaceUnmountedWhenNil(t *testing.T) {
	router := NewRouter(testDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unmounted operator surface returned %d, want %d", rec.Code, http.StatusNotFound)
	}
}
