// File: internal/server/server.go

// Package server exposes the job API over HTTP: submission, telemetry
// streaming, results and the human input exchange.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/registry"
)

// Server wraps the HTTP listener and its routes.
type Server struct {
	cfg        config.HTTPConfig
	log        *zap.Logger
	httpServer *http.Server
}

// New assembles the router and listener. Start must be called to serve.
func New(cfg config.HTTPConfig, reg *registry.Registry, broker schemas.InputBroker, logger *zap.Logger) *Server {
	log := logger.Named("http_server")
	handlers := NewHandlers(logger, reg, broker, cfg.StreamKeepAlive)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// No global timeout middleware: the telemetry stream is long-lived.

	handlers.RegisterRoutes(r)

	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}

	return &Server{
		cfg: cfg,
		log: log,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
