package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abnerjacobsen/das-sankhya/internal/cache"
	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/health"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
	"github.com/abnerjacobsen/das-sankhya/internal/tracing"
	"github.com/abnerjacobsen/das-sankhya/internal/upstream"
)

// APIPrefix is the path prefix of the versioned API routes
const APIPrefix = "/api/v1"

// Server represents the HTTP service
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	healthManager *health.Manager
	cache         *cache.Client
	upstream      *upstream.Client
	logger        *logger.ComponentLogger
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config:        cfg,
		healthManager: health.NewManager(),
		logger:        logger.Get().WithComponent("server"),
	}
}

// Open connects the server's dependencies: Redis when enabled and the upstream client.
func (s *Server) Open(ctx context.Context) error {
	if s.config.Redis.Enabled {
		c, err := cache.Connect(ctx, s.config.Redis)
		if err != nil {
			return err
		}
		s.cache = c
		s.healthManager.Register("redis", health.RedisChecker(c))
	}

	s.upstream = upstream.New(s.config.Upstream, s.config.Identifiers)

	s.healthManager.Register("config", health.ConfigChecker(func() bool {
		return s.config.Validate() == nil
	}))

	return nil
}

// Close releases the dependencies opened by Open
func (s *Server) Close() error {
	if s.upstream != nil {
		s.upstream.Close()
	}
	if s.cache != nil {
		s.healthManager.Unregister("redis")
	}
	if err := s.cache.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	return nil
}

// Handler builds the router with its middleware stack.
// Open must be called first.
func (s *Server) Handler() http.Handler {
	cfg := s.config
	r := chi.NewRouter()

	// Outermost first
	for _, mw := range s.middlewares() {
		r.Use(mw)
	}

	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	// Health check endpoints
	r.Get(cfg.Observability.HealthPath, s.healthManager.HealthHandler())
	r.Get(cfg.Observability.ReadinessPath, s.healthManager.ReadinessHandler())
	r.Get(cfg.Observability.LivenessPath, s.healthManager.LivenessHandler())

	if cfg.Observability.MetricsEnabled {
		r.Handle(cfg.Observability.MetricsPath, metrics.Handler())
	}

	var getter health.Getter
	if s.upstream != nil {
		getter = s.upstream
	}
	api := health.NewAPI(getter, cfg.Upstream.ReadyCheckURL, s.pinger())
	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/ready", api.ReadyHandler())
		r.Get("/microservice", api.MicroserviceHandler())
	})

	return r
}

// middlewares returns the request middleware stack, outermost first
func (s *Server) middlewares() []middleware.Middleware {
	cfg := s.config

	var observe []middleware.Option
	if cfg.Observability.MetricsEnabled {
		observe = append(observe, middleware.WithObserver(metrics.IdentifierObserver))
	}
	with := func(opts ...middleware.Option) []middleware.Option {
		return append(opts, observe...)
	}

	mws := []middleware.Middleware{
		middleware.RequestID(with(
			middleware.WithHeader(cfg.Identifiers.RequestIDHeader),
		)...),
		middleware.CorrelationID(with(
			middleware.WithHeader(cfg.Identifiers.CorrelationIDHeader),
			middleware.WithValidation(cfg.Identifiers.ValidateCorrelationID),
		)...),
		middleware.IdempotencyKey(with(
			middleware.WithHeader(cfg.Identifiers.IdempotencyKeyHeader),
			middleware.WithMaxLength(cfg.Identifiers.IdempotencyKeyMaxLength),
		)...),
		tracing.Middleware(),
	}
	if cfg.Observability.MetricsEnabled {
		mws = append(mws, metrics.Middleware(cfg.Observability.MetricsPath))
	}
	return append(mws,
		middleware.Logging(),
		middleware.Timing(),
		middleware.Recovery(),
	)
}

// pinger returns the Redis client as a health.Pinger, or nil when Redis is disabled
func (s *Server) pinger() health.Pinger {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
// Dependencies are opened first and closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Open(ctx); err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("failed to release dependencies", logger.Fields{
				"error": err.Error(),
			})
		}
	}()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: s.config.Server.ReadHeaderTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		MaxHeaderBytes:    s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", logger.Fields{
			"addr":    ln.Addr().String(),
			"project": s.config.Server.ProjectName,
			"version": s.config.Server.Version,
		})
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errChan

	s.logger.Info("server shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
