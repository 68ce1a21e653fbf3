// Package handler exposes the public read side of the registry: individual
// records, handle lookups, and the cached listing. Write endpoints live in
// the registrar handler.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/httputil"
	"geoseal/pkg/requestcontext"
)

// Service defines the ledger read operations the handler exposes.
type Service interface {
	Get(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	List(ctx context.Context) ([]*models.Record, error)
}

// ListingCache holds the serialized listing payload between writes. The
// registrar invalidates it after every committed registration or reveal.
type ListingCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, payload []byte) error
}

// Handler wires registry read endpoints to the ledger service.
type Handler struct {
	service Service
	cache   ListingCache
	logger  *slog.Logger
}

// New constructs a ledger read handler. cache may be nil, in which case every
// listing request hits the store.
func New(service Service, cache ListingCache, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		logger:  logger,
	}
}

// Register mounts registry read endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/records", h.HandleList)
	r.Get("/records/{recordID}", h.HandleGet)
	r.Get("/records/{recordID}/handle", h.HandleGetHandle)
}

// HandleGet handles GET /records/{recordID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Get(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleGetHandle handles GET /records/{recordID}/handle requests. Callers
// use it to obtain the ciphertext handle they need for a reveal request.
func (h *Handler) HandleGetHandle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Get(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &HandleResponse{
		RecordID:         rec.ID.String(),
		CiphertextHandle: rec.CiphertextHandle.String(),
	})
}

// HandleList handles GET /records requests. The serialized response is cached
// and served verbatim until a write invalidates it.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if h.cache != nil {
		payload, hit, err := h.cache.Get(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "listing cache read failed",
				"request_id", requestID,
				"error", err,
			)
		}
		if hit {
			writeRawJSON(w, payload)
			return
		}
	}

	records, err := h.service.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payload, err := json.Marshal(FromRecords(records))
	if err != nil {
		h.logger.ErrorContext(ctx, "listing serialization failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, payload); err != nil {
			h.logger.WarnContext(ctx, "listing cache write failed",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	writeRawJSON(w, payload)
}

func writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
