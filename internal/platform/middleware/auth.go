package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
	"geoseal/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	OwnerID string
}

// SecurityAuditor receives auth rejections for the security audit stream.
// Nil is tolerated so handler tests can run the chain without audit wiring.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// GetOwnerID retrieves the authenticated owner from the context.
func GetOwnerID(ctx context.Context) id.OwnerID {
	return requestcontext.Owner(ctx)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func RequireAuth(validator JWTValidator, auditor SecurityAuditor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				token := after
				claims, err := validator.ValidateToken(token)
				if err != nil {
					rejectAuth(ctx, w, auditor, logger, "invalid_token", "Invalid or expired token")
					return
				}

				// Token claims are a trust boundary: parse the owner once
				// here so interior code only sees the typed value.
				owner, err := id.ParseOwnerID(claims.OwnerID)
				if err != nil {
					rejectAuth(ctx, w, auditor, logger, "malformed_subject", "Invalid or expired token")
					return
				}

				ctx = requestcontext.WithOwner(ctx, owner)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			rejectAuth(ctx, w, auditor, logger, "missing_token", "Missing or invalid Authorization header")
		})
	}
}

func rejectAuth(ctx context.Context, w http.ResponseWriter, auditor SecurityAuditor, logger *slog.Logger, reason, description string) {
	requestID := GetRequestID(ctx)
	logger.WarnContext(ctx, "unauthorized access",
		"reason", reason,
		"request_id", requestID,
	)
	if auditor != nil {
		auditor.Emit(ctx, audit.SecurityEvent{
			Subject:   requestcontext.ClientIP(ctx),
			Action:    string(audit.EventAuthFailed),
			Reason:    reason,
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestID,
			Severity:  audit.SeverityWarning,
		})
	}
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", description)
}
