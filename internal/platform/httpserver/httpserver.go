// Package httpserver provides a pre-configured http.Server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with timeouts suitable for a JSON API that
// carries document payloads.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
