// Package httpserver builds the API server with the timeouts the ledger's
// traffic profile needs: every request carries a small JSON command or query,
// so slow-client allowances stay tight.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

// New wraps handler in a server bound to addr. Lifecycle (ListenAndServe,
// Shutdown) stays with the caller.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
