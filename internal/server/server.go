package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/scriptor/internal/app"
)

// Server owns the HTTP listener, the route table and the middleware chain
type Server struct {
	app       *app.App
	router    *http.ServeMux
	server    *http.Server
	startedAt time.Time
}

// New wires the routes and builds the listener from the server config
func New(application *app.App) *Server {
	s := &Server{app: application}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: s.withMiddleware(s.router),
		// Hijacked WebSocket connections are exempt from these once upgraded
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) addr() string {
	return fmt.Sprintf("%s:%d", s.app.Config.Server.Host, s.app.Config.Server.Port)
}

// Start runs the listener and blocks until Shutdown or a listener error
func (s *Server) Start() error {
	s.startedAt = time.Now()
	s.app.Logger.Info().
		Str("address", s.addr()).
		Str("jobs_url", fmt.Sprintf("http://%s/api/jobs", s.addr())).
		Str("ws_url", fmt.Sprintf("ws://%s/ws", s.addr())).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	uptime := time.Duration(0)
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Round(time.Second)
	}
	s.app.Logger.Info().
		Str("uptime", uptime.String()).
		Msg("HTTP server stopped")
	return nil
}
