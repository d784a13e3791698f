// internal/server/server.go

// Package server exposes the account and status API over HTTP. It owns no
// business logic: handlers delegate to the store, the runner, and the schedule
// registry.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// Server is the HTTP API surface.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	store    schemas.StatusStore
	runner   schemas.AccountRunner
	registry schemas.ScheduleRegistry

	httpSrv *http.Server
}

// New wires the HTTP server against its collaborators.
func New(cfg config.ServerConfig, logger *zap.Logger, store schemas.StatusStore, runner schemas.AccountRunner, registry schemas.ScheduleRegistry) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		store:    store,
		runner:   runner,
		registry: registry,
	}
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the chi route tree. Exported so tests can drive it with
// httptest without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))
	if s.cfg.RatePerMinute > 0 {
		limiter := newIPRateLimiter(s.cfg.RatePerMinute, s.cfg.RateBurst)
		r.Use(limiter.middleware)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetAccount)
				r.Patch("/", s.handlePatchAccount)
				r.Delete("/", s.handleDeleteAccount)
				r.Post("/run", s.handleRunAccount)
			})
		})

		r.Post("/run", s.handleRunAll)

		r.Get("/status", s.handleListStatuses)
		r.Get("/status/{name}", s.handleGetStatus)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
