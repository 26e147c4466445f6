// Package server runs the chat API over HTTP with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/teilomillet/parley/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
			ErrorLog:       zap.NewStdLog(logger.Named("http")),
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured port and blocks until ctx is cancelled or
// the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for up to the configured shutdown timeout. It also
// returns once the server stops on its own, e.g. after a direct Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	served := make(chan struct{})

	g.Go(func() error {
		defer close(served)
		s.logger.Info("server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return s.Shutdown()
		case <-served:
			return nil
		}
	})

	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}
