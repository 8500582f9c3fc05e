// Package api exposes the campaign lifecycle, opt-out management and the
// gateway delivery webhook over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Server represents the API server.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server around the given handlers.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	handler := SetupRoutes(h, cfg.AllowedOrigins)
	return &Server{
		config:  cfg,
		handler: handler,
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// ListenAndServe starts serving on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe() error {
	logger.Info("api server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
