package httpserver

import (
	"net/http"
	"time"
)

const (
	defaultWriteTimeout = 60 * time.Second
	// headroom past the slowest handler before the write deadline
	writeSlack = 10 * time.Second
)

// New builds an HTTP server with the timeouts used across the service.
// slowest is the longest a handler may spend before writing, such as a
// search detail read that reconciles with the provider first. The write
// deadline is raised past it when needed.
func New(addr string, handler http.Handler, slowest time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      max(defaultWriteTimeout, slowest+writeSlack),
		IdleTimeout:       120 * time.Second,
	}
}
