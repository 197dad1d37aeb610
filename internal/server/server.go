// Package server wires the HTTP surface of the audit-feed service.
//
// ROUTES:
//
//	GET /healthz      → database reachability
//	GET /metrics      → Prometheus exposition of the service registry
//	GET /api/events   → audit log, bearer JWT of a platform admin
//
// The core operations are not exposed over HTTP; they are called in-process
// through the facade (or the resumiro CLI).
//
// LIFECYCLE:
// Start runs the HTTP server and any background workers (the Redis event
// forwarder) in one errgroup. SIGINT/SIGTERM, or any member failing, cancels
// the group: the HTTP server drains for up to 30s and workers see their
// context cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/handler"
	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

type Config struct {
	Port int
	// JWTSecret enables /api/events. Empty leaves the route unmounted.
	JWTSecret string
}

// Deps are the collaborators the routes need.
type Deps struct {
	Events  handler.EventSource
	DB      handler.Pinger
	Metrics *metrics.Metrics
}

// Worker is a background task that runs until ctx is cancelled.
type Worker func(ctx context.Context) error

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(deps Deps) error {
	// Order: request id first so every log line carries it.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	health := handler.NewHealthHandler(deps.DB, s.logger)
	s.router.Get("/healthz", health.HandleHealth)

	if deps.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	if s.config.JWTSecret == "" {
		s.logger.Warn("JWT_SECRET not set, /api/events is disabled")
		return nil
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}
	events := handler.NewEventsHandler(deps.Events, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/events", events.HandleList)
	})
	return nil
}

// Start blocks until a shutdown signal arrives or a member of the group
// fails.
func (s *Server) Start(workers ...Worker) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx, workers...)
}

// Run is Start with the caller's context in place of signal handling.
func (s *Server) Run(ctx context.Context, workers ...Worker) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	for _, w := range workers {
		g.Go(func() error { return w(gctx) })
	}

	return g.Wait()
}
