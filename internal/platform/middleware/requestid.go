package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"geoseal/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID for log correlation. An inbound
// X-Request-ID is trusted so IDs stay stable across gateway hops; otherwise a
// fresh UUID is minted. The ID is echoed on the response and stored in the
// context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
