package telemetryserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
)

// Run binds the listener and serves in the background. Bind errors are
// returned directly; later serve errors end Start.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info(context.Background(), "telemetry server listening",
		observability.String("address", listener.Addr().String()),
		observability.String("service", s.config.ServiceName),
	)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start runs the server and blocks until ctx is done, a termination signal
// arrives or serving fails, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Run(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-s.serveErr:
		s.logger.Error(ctx, "telemetry server failed", observability.Error(err))
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info(ctx, "signal received, initiating shutdown",
			observability.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the server. Later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "error shutting down telemetry server", observability.Error(err))
			s.shutdownErr = err
			return
		}
		s.logger.Info(ctx, "telemetry server stopped")
	})
	return s.shutdownErr
}
