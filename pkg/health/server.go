// Package health exposes liveness, readiness, datastore and Prometheus
// endpoints over HTTP.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Serving with every extension ready
//   - GET /health/store: Datastore ping
//   - GET /metrics: Prometheus metrics
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/taverna/pkg/log"
)

// Config holds server settings.
type Config struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Server is the health HTTP server.
type Server struct {
	server       *http.Server
	logger       log.Logger
	shutdownOnce sync.Once
}

// NewServer creates a stopped server. gatherer may be nil to omit /metrics.
func NewServer(cfg Config, handler *Handler, gatherer prometheus.Gatherer, logger log.Logger) *Server {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(handler, gatherer, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// NewRouter builds the chi router serving the health endpoints.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", handler.Liveness)
		r.Get("/ready", handler.Readiness)
		r.Get("/store", handler.Store)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	return r
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("health server listening", log.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("health server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("health server shutdown: %w", err)
			s.logger.Error("health server shutdown error", log.Err(err))
			return
		}
		s.logger.Info("health server stopped")
	})
	return shutdownErr
}

func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("health request",
				log.String("request_id", middleware.GetReqID(r.Context())),
				log.String("method", r.Method),
				log.String("path", r.URL.Path),
				log.Int("status", ww.Status()),
				log.Duration("duration", time.Since(start)))
		})
	}
}
