// Package handler exposes the write side of the registry: registration and
// reveal. Both endpoints require an authenticated owner; public reads live
// in the ledger handler.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geoseal/internal/ledger/models"
	"geoseal/internal/registrar/service"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/platform/httputil"
	"geoseal/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/registrar-mocks.go -package=mocks Service

// Service is the slice of the registrar the write endpoints drive.
type Service interface {
	CreateRecord(ctx context.Context, input service.CreateInput) (*models.Record, error)
	RevealRecord(ctx context.Context, recordID id.RecordID) (*models.Record, error)
}

// Handler serves the registration and reveal endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a registrar handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the write endpoints on the router. The auth middleware is
// applied by the caller so the same handler serves dev and production wiring.
func (h *Handler) Register(r chi.Router) {
	r.Post("/records", h.HandleCreate)
	r.Post("/records/{recordID}/reveal", h.HandleReveal)
}

// HandleCreate runs the create flow for an authenticated owner.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	owner := requestcontext.Owner(ctx)
	if owner == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.CreateRecord(ctx, service.CreateInput{
		RecordID:  req.parsedRecordID,
		Label:     req.Label,
		Owner:     owner,
		Latitude:  req.parsedLatitude,
		Longitude: req.parsedLongitude,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromRecordCreated(rec))
}

// HandleReveal runs the reveal flow for an authenticated owner.
func (h *Handler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := requestcontext.Owner(ctx)
	if owner == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.RevealRecord(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecordRevealed(rec))
}
