package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout caps how long a request may run. Handlers that respect context
// cancellation unwind when the deadline fires; the reveal flow maps the
// cancellation to its own timeout taxonomy before responding.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
