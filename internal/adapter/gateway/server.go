package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/storechat/admin-agent/internal/infra/config"
)

// Server is the HTTP front of the admin agent: the chat API for
// operator UIs and the interaction webhook for the notifier.
type Server struct {
	addr      string
	logger    *slog.Logger
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server around the given handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Server{
		addr:   cfg.Addr,
		logger: logger,
		httpSrv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
			// No WriteTimeout: chat responses are long-lived SSE streams.
		},
	}
}

// Start begins serving. Non-blocking; the listener is bound before
// return so BoundAddr is usable immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()
	s.httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		s.logger.Info("gateway started", "addr", s.boundAddr)
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("gateway server error", "error", err)
		}
	}()
	return nil
}

// BoundAddr returns the actual listen address once started.
func (s *Server) BoundAddr() string { return s.boundAddr }

// Shutdown stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
