// Package httpserver builds the net/http server the registry listens on.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with conservative timeouts. ReadHeaderTimeout bounds
// header parsing separately from the body read; IdleTimeout reaps idle
// keep-alive connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
