package httpapi

import (
	"context"
	"net/http"
	"time"

	"geoseal/internal/fhe"
	"geoseal/pkg/platform/httputil"
)

// probeTimeout bounds the readiness dependency pings so a wedged dependency
// reports unavailable instead of hanging the orchestrator's probe.
const probeTimeout = 2 * time.Second

// Backend reports the encryption backend lifecycle.
type Backend interface {
	State() fhe.State
	InitErr() error
}

// Availability reports whether the ledger can serve reads and writes.
type Availability interface {
	IsAvailable(ctx context.Context) bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	backend Backend
	ledger  Availability
}

// NewHealthHandler constructs the probe handler.
func NewHealthHandler(backend Backend, ledger Availability) *HealthHandler {
	return &HealthHandler{backend: backend, ledger: ledger}
}

type healthResponse struct {
	Status       string `json:"status"`
	Backend      string `json:"backend,omitempty"`
	Ledger       string `json:"ledger,omitempty"`
	BackendError string `json:"backend_error,omitempty"`
}

// HandleLiveness handles GET /healthz. The process is alive; readiness is a
// separate question.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz. Ready means the encryption backend
// lifecycle is Ready and the ledger's dependencies answer their pings.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	state := h.backend.State()
	available := h.ledger.IsAvailable(ctx)

	resp := healthResponse{
		Status:  "ready",
		Backend: string(state),
		Ledger:  "available",
	}
	if !available {
		resp.Ledger = "unavailable"
	}
	if state == fhe.StateFailed {
		if err := h.backend.InitErr(); err != nil {
			resp.BackendError = err.Error()
		}
	}

	status := http.StatusOK
	if state != fhe.StateReady || !available {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
