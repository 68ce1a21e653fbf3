package admin

import (
	"log/slog"
	"net/http"

	"geoseal/pkg/requestcontext"
	"geoseal/pkg/secrets"
)

// TokenHeader carries the operator token. A separate header keeps the
// Authorization header free for registrant bearer tokens.
const TokenHeader = "X-Admin-Token"

// RequireAdminToken gates operator-only surfaces (audit trail reads) behind
// the X-Admin-Token header. tokenHash is the bcrypt hash of the configured
// token; the plaintext never outlives process startup, and bcrypt keeps the
// comparison constant-time.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if token == "" || secrets.Verify(token, tokenHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"operator token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
