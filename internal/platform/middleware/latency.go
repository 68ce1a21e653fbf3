package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"geoseal/internal/platform/metrics"
)

// LatencyMiddleware records request duration per route into the process
// metrics. The chi route pattern is used instead of the raw path so record
// IDs do not explode the label cardinality.
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequestLatency(r.Method, route, rec.status, time.Since(start).Seconds())
		})
	}
}
