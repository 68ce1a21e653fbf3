// Package admin exposes the operator read surface: the audit trail behind a
// bcrypt-checked token. Nothing here mutates registry state; the surface stays
// unmounted entirely when no operator token is configured.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/audit"
	"geoseal/pkg/platform/httputil"
	adminmw "geoseal/pkg/platform/middleware/admin"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// AuditReader is the slice of the audit store the operator surface reads.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]audit.Event, error)
}

// Handler serves operator audit reads.
type Handler struct {
	events    AuditReader
	tokenHash string
	logger    *slog.Logger
}

// New constructs the operator handler. tokenHash is the bcrypt hash of the
// configured operator token.
func New(events AuditReader, tokenHash string, logger *slog.Logger) *Handler {
	return &Handler{
		events:    events,
		tokenHash: tokenHash,
		logger:    logger,
	}
}

// Register mounts the operator endpoints under /admin.
func (h *Handler) Register(r chi.Router) {
	operator := chi.NewRouter()
	operator.Use(adminmw.RequireAdminToken(h.tokenHash, h.logger))
	operator.Get("/audit/events", h.HandleListEvents)
	r.Mount("/admin", operator)
}

// HandleListEvents handles GET /admin/audit/events. With ?owner= the trail is
// filtered to one registrant; otherwise the most recent events are returned
// in insertion order, bounded by ?limit=.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if rawOwner := r.URL.Query().Get("owner"); rawOwner != "" {
		owner, err := id.ParseOwnerID(rawOwner)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		events, err := h.events.ListByOwner(ctx, owner)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
		return
	}

	limit := defaultEventLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxEventLimit)
	}

	events, err := h.events.ListRecent(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}
