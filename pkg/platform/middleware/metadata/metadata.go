package metadata

import (
	"net"
	"net/http"
	"strings"

	"geoseal/pkg/platform/middleware/device"
	"geoseal/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, User-Agent, and a parsed device
// description from the request and adds them to the context for handlers,
// services, and the security audit stream.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := r.Context()
		ctx = requestcontext.WithClientMetadata(ctx, ip, userAgent)
		ctx = requestcontext.WithDevice(ctx, device.Describe(userAgent))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the originating client IP, looking through
// proxy headers before falling back to the socket address.
func ClientIPFromRequest(r *http.Request) string {
	// The leftmost X-Forwarded-For entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
