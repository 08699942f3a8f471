package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/poller"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Listen   string
	CertFile string // Serve HTTPS when both CertFile and KeyFile are set
	KeyFile  string
}

// Poller is the state source and write path the server fronts.
type Poller interface {
	State() poller.State
	Set(ctx context.Context, key string, value any) error
	Subscribe(fn func(poller.State)) (unsubscribe func())
}

// Server exposes the current controller state over HTTP and a websocket.
type Server struct {
	config    Config
	poller    Poller
	metrics   http.Handler
	tlsConfig *tls.Config
	hub       *hub

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new Server instance. metrics may be nil.
func New(config Config, p Poller, metrics http.Handler) (*Server, error) {
	s := &Server{
		config:  config,
		poller:  p,
		metrics: metrics,
		hub:     newHub(),
	}

	if config.CertFile != "" {
		tlsConfig, err := NewTLSConfig(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	return s, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/sensors", s.handleSensors)
	mux.HandleFunc("GET /api/sensors/{key}", s.handleSensor)
	mux.HandleFunc("POST /api/sensors/{key}", s.handleSet)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return logRequests(mux)
}

// Addr returns the bound address once Run is listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	unsubscribe := s.poller.Subscribe(s.hub.broadcastState)
	defer unsubscribe()

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	logging.Info("HTTP server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil))

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down HTTP server...")
	s.hub.close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return httpServer.Close()
	}
	return nil
}

// ActiveClients returns the number of connected websocket clients
func (s *Server) ActiveClients() int {
	return s.hub.count()
}
