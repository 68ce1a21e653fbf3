package middleware

import (
	"net/http"
	"strings"
)

// ContentTypeJSON rejects write requests whose body is not declared as JSON.
// GET and DELETE requests carry no body and pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			contentType := r.Header.Get("Content-Type")
			if !strings.HasPrefix(contentType, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":"unsupported_media_type","error_description":"Content-Type must be application/json"}`))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
