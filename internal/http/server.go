package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Server wraps the public HTTP server.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer creates the public HTTP server on the given address.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:        addr,
			Handler:     handler,
			ReadTimeout: 5 * time.Second,
			// No WriteTimeout: websocket connections are long-lived;
			// per-send deadlines are enforced by the hub instead.
			IdleTimeout: 60 * time.Second,
		},
	}
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
