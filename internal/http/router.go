// Package httpapi assembles the registry's HTTP surface. Handlers live in
// their domain packages and register themselves; this package owns only the
// middleware chain, the health probes, and which surfaces get mounted.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoseal/internal/platform/metrics"
	"geoseal/internal/platform/middleware"
	"geoseal/pkg/platform/middleware/metadata"
	"geoseal/pkg/platform/middleware/requesttime"
)

// requestTimeout must outlast the reveal round trip budget; a shorter HTTP
// timeout would abort reveals that the oracle deadline still allows.
const requestTimeout = 60 * time.Second

// Registrant mounts one domain's routes on the router.
type Registrant interface {
	Register(r chi.Router)
}

// Deps carries the assembled dependencies for the HTTP surface. Operator may
// be nil, in which case no admin routes are mounted.
type Deps struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	JWTValidator    middleware.JWTValidator
	SecurityAuditor middleware.SecurityAuditor

	Reads    Registrant
	Writes   Registrant
	Operator Registrant
	Health   *HealthHandler
}

// NewRouter wires the full middleware chain and mounts every surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	// Probes and metrics sit outside the JSON content-type gate; scrapers and
	// orchestrators don't send Content-Type headers.
	if deps.Health != nil {
		r.Get("/healthz", deps.Health.HandleLiveness)
		r.Get("/readyz", deps.Health.HandleReadiness)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		deps.Reads.Register(r)
		if deps.Operator != nil {
			deps.Operator.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.JWTValidator, deps.SecurityAuditor, deps.Logger))
			deps.Writes.Register(r)
		})
	})

	return r
}
