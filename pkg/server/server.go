package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/setup"
	"mercator-hq/arbor/pkg/telemetry/health"
	"mercator-hq/arbor/pkg/telemetry/metrics"
	"mercator-hq/arbor/pkg/telemetry/tracing"
)

// Server is the arbor HTTP API server.
type Server struct {
	config    *config.ServerConfig
	telemetry *config.TelemetryConfig
	parser    *parse.Parser
	health    *health.Checker
	metrics   *metrics.Collector
	logger    *slog.Logger

	httpServer   *http.Server
	addr         net.Addr
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server over the components of rt.
func New(rt *setup.Runtime) *Server {
	return &Server{
		config:    &rt.Config.Server,
		telemetry: &rt.Config.Telemetry,
		parser:    rt.Parser,
		health:    rt.Health,
		metrics:   rt.Metrics,
		logger:    rt.Logger.Slog().With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is done,
// SIGINT or SIGTERM arrives, or the listener fails. It then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/parse", s.handleParse)
	mux.HandleFunc("GET /v1/backends", s.handleBackends)
	mux.HandleFunc("GET /v1/resolve", s.handleResolve)

	if s.telemetry.Metrics.IsEnabled() {
		mux.Handle("GET "+s.telemetry.Metrics.Path, s.metrics.Handler())
	}
	mux.Handle(s.telemetry.Health.LivenessPath, s.health.LivenessHandler())
	mux.Handle(s.telemetry.Health.ReadinessPath, s.health.ReadinessHandler())

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
