// Package core is the HTTP chassis of the raincheck API. It builds a chi
// router that serves both plain net/http and Lambda function URLs, and owns
// the cross-cutting concerns (recovery, request ids, logging, CORS, metrics
// and the JSON envelope) that run before domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server carries every dependency of the HTTP layer so tests can swap them.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler is mounted at GET /metrics when non-nil.
	MetricsHandler http.Handler

	HealthProbes []HealthProbe

	// V1RouteRegistrars are set by main so core never imports handlers.
	V1RouteRegistrars []func(chi.Router)

	// Closers are released by Shutdown in order.
	Closers []io.Closer

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Call MountRoutes after populating the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router for http.Server and lambdaurl.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases the registered closers (cache pools, metric flushers).
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing server resources: %w", err)
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
