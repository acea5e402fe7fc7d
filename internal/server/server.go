package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomhub/internal/config"
	"github.com/Tyrowin/roomhub/internal/hub"
)

// Server serves the websocket endpoint and HTTP surface in front of a hub and
// tracks live sessions so they can be closed on shutdown.
type Server struct {
	cfg      config.Config
	hub      *hub.Hub
	logger   logr.Logger
	origins  originPolicy
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// New creates a Server for h using cfg.
func New(cfg config.Config, h *hub.Hub, logger logr.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		hub:     h,
		logger:  logger,
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
		clients: make(map[*Client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.allows(r) {
		return true
	}

	logr.FromContextOrDiscard(r.Context()).Info("blocked websocket connection from disallowed origin",
		"origin", r.Header.Get("Origin"))
	return false
}

// Hub returns the hub this server routes through.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// CreateServer creates an http.Server for the routes with reasonable
// timeouts for production use.
func (s *Server) CreateServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on %q error: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then shuts down gracefully: the HTTP
// server stops accepting, live sessions are closed and their pumps awaited
// within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := s.CreateServer()
	s.logger.Info("server listening", "addr", l.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(err, "http server shutdown error")
	}
	return s.CloseSessions(shutdownCtx)
}

// CloseSessions closes every live session and waits for their pumps to exit.
// It returns ctx.Err() if ctx ends first.
func (s *Server) CloseSessions(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	s.logger.Info("closed sessions", "count", len(clients))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown timeout reached, some sessions may still be running")
		return ctx.Err()
	}
}

// startClient registers c with the hub and tracks it until both pumps exit.
func (s *Server) startClient(c *Client) {
	var pumps sync.WaitGroup
	pumps.Add(2)
	s.wg.Add(1)
	c.Start(pumps.Done)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		pumps.Wait()

		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()
}
