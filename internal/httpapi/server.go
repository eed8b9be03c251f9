// Package httpapi exposes the Memory API over HTTP.
//
// Three operations exist: append (POST /api/log-memory), read
// (GET /api/get-memory), and overwrite (POST /api/overwrite-memory). Every
// operation passes the access gate first and touches only the resolved
// tenant's own namespace.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"memorykeep/internal/registry"
	"memorykeep/internal/store"
)

const defaultShutdownTimeout = 10 * time.Second

// Config configures one Memory API server.
type Config struct {
	// Addr is the listen address, for example ":5000".
	Addr string
	// Registry resolves credentials to tenants.
	Registry *registry.Registry
	// Store persists tenant memory.
	Store *store.Store
	// Logger receives request-level diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
	// ShutdownTimeout bounds graceful shutdown. Zero uses a default.
	ShutdownTimeout time.Duration
}

// Server serves the Memory API.
type Server struct {
	registry *registry.Registry
	store    *store.Store
	logger   *slog.Logger

	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// New builds a Server from config.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("new httpapi server: nil registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("new httpapi server: nil store")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("new httpapi server: empty listen address")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	server := &Server{
		registry:        cfg.Registry,
		store:           cfg.Store,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
	server.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	return server, nil
}

// Handler returns the routed Memory API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/log-memory", s.requireCredential(s.handleLogMemory))
	mux.HandleFunc("GET /api/get-memory", s.requireCredential(s.handleGetMemory))
	mux.HandleFunc("POST /api/overwrite-memory", s.requireCredential(s.handleOverwriteMemory))

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("memory api listening", "addr", s.httpServer.Addr)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve memory api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown memory api: %w", err)
	}
	<-serveErr

	return nil
}
