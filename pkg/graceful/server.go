// Package graceful runs an HTTP server that drains in-flight requests on shutdown.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps http.Server with graceful shutdown capabilities.
type Server struct {
	httpServer      *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
	onShutdown      func()
}

// NewServer constructs a graceful server wrapper.
func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		httpServer:      srv,
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// OnShutdown registers fn to run as soon as draining starts, before the
// listener closes. Readiness probes flip here.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = fn
}

// ListenAndServe listens on the server's address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains for at most the
// shutdown timeout. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.log.Error("http server error", slog.Any("error", err))
		return err
	case <-ctx.Done():
	}

	if s.onShutdown != nil {
		s.onShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.Info("shutting down http server", slog.Duration("timeout", s.shutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http server shutdown error", slog.Any("error", err))
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
