// Package core provides the API chassis for the stockbrief service.
// It creates a chi router that serves both standard HTTP (local development)
// and AWS Lambda API Gateway events, and it enforces cross-cutting concerns
// (panic recovery, logging, CORS, compression, metrics, authentication)
// before requests reach the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stockbrief/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// metrics.PrometheusCollector and metrics.CloudWatchCollector implement it.
type MetricsCollector interface {
	// RecordRequest records request latency and count for one response.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of domain routes. The server passes itself so
// registrars can wrap their routes with RequireIdentity or RequireAdminKey.
type RouteRegistrar func(r chi.Router, s *Server)

// Server encapsulates all dependencies of the HTTP API, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	AdminKeys     AdminKeyChecker

	// HealthProbes are run concurrently by GET /health.
	HealthProbes []HealthProbe

	// MetricsHandler is mounted at GET /metrics when set (Prometheus).
	MetricsHandler http.Handler

	// RouteRegistrars are populated by the entry point before MountRoutes.
	// This indirection avoids import cycles between core and handlers.
	RouteRegistrars []RouteRegistrar

	// Closers release resources (database pool) on Shutdown.
	Closers []func()

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. The caller mounts routes with MountRoutes after setting the
// optional fields.
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

// Handler returns the router as an http.Handler.
// Used by http.Server (local) and the Lambda adapter.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources in reverse registration order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	for i := len(s.Closers) - 1; i >= 0; i-- {
		s.Closers[i]()
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
