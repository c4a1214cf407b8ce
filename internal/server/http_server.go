// Package server constructs the HTTP service with helpers that apply
// sensible production defaults.
package server

import (
	"context"
	"net/http"
	"time"
)

// CreateHTTPServer creates an HTTP server for addr and handler with
// reasonable timeouts. WebSocket connections are hijacked and so are not
// bound by them.
func CreateHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts down server, waiting at most timeout
// for in-flight requests.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
