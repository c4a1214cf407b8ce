// Package server implements the TCP listener that accepts drawing clients
// and the lifecycle of the shared Dispatcher behind it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/netsketch/internal/transport"
)

// Server accepts connections over TCP (and, through Router, WebSocket) and
// binds each one to the shared Dispatcher.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	dispatcher *Dispatcher
	origins    *originPolicy

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	closing  bool
	done     chan struct{}

	wg sync.WaitGroup
}

// New creates a Server. Zero-valued fields of cfg take their defaults.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = sanitizeConfig(cfg)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: NewDispatcher(cfg, logger),
		origins:    newOriginPolicy(cfg.AllowedOrigins, logger),
		conns:      make(map[*conn]struct{}),
		done:       make(chan struct{}),
	}
}

// Config returns the effective configuration after defaults were applied.
func (s *Server) Config() Config { return s.cfg }

// Dispatcher returns the Dispatcher shared by every connection.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Listen binds the TCP listener. Serve calls it if it has not been called.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or Shutdown is called.
// It always returns a non-nil error; after Shutdown it is ErrServerClosed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrServerClosed
	}
	ln := s.listener
	s.wg.Add(2)
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
	}()
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			s.closeListener()
		case <-s.done:
		}
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.isClosing() || ctx.Err() != nil {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("temporary accept error", "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		go func() {
			_ = s.ServeConn(transport.NewStream(nc, s.transportOptions()))
		}()
	}
}

// ListenAndServe binds the listener and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// ServeConn runs one connection to completion over an already established
// transport. It blocks until the connection has been torn down.
func (s *Server) ServeConn(t transport.Conn) error {
	c := newConn(t, s.dispatcher, s.cfg, s.logger)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = t.Close()
		return ErrServerClosed
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.wg.Done()
	}()

	c.serve(&s.wg)
	return nil
}

// Shutdown stops accepting connections, closes every live connection and
// waits for their goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating server shutdown")

	s.mu.Lock()
	if !s.closing {
		s.closing = true
		close(s.done)
	}
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.closeListener()
	for _, c := range conns {
		_ = c.Close()
	}
	s.logger.Info("closed client connections", "count", len(conns))

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("server shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("server shutdown timed out, some connections may still be running")
		return ctx.Err()
	}
}

func (s *Server) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("error closing listener", "error", err)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// sweep periodically forgets users that have been offline for longer than
// the configured TTL.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.dispatcher.ExpireUsers(s.cfg.UserTTL)
		}
	}
}

func (s *Server) transportOptions() transport.Options {
	return transport.Options{
		MaxFrameSize: s.cfg.MaxFrameSize,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}
