package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/linesearch/internal/engine"
	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// maxDrain bounds how much unwanted input is discarded before a reply.
const maxDrain = 1 << 20

// Bounds of the pause after a failed Accept, for example when the process
// is out of file descriptors.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts connections and hands each one to its own goroutine.
type Server struct {
	settings  Settings
	engine    *engine.Engine
	guard     *Guard
	admission *semaphore.Weighted
	tlsConfig *tls.Config
	logger    *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for eng. TLS material is loaded here so that a
// misconfigured server fails before it binds.
func New(settings Settings, eng *engine.Engine, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, lserrors.InternalError("server needs an engine", nil)
	}
	if err := settings.Validate(); err != nil {
		return nil, lserrors.ConfigError(err.Error(), err)
	}

	s := &Server{
		settings: settings,
		engine:   eng,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.guard = NewGuard(settings.MaxPayloadSize, s.logger)
	if settings.MaxConnections > 0 {
		s.admission = semaphore.NewWeighted(int64(settings.MaxConnections))
	}
	if settings.TLS.Enabled {
		cfg, err := LoadTLSConfig(settings.TLS)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = cfg
	}
	return s, nil
}

// Listen binds the configured address. Serve must be called afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.settings.Addr, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.shutdown = false
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop until ctx is cancelled or Close is called.
// Shutdown closes the listener at once; connections already accepted run
// to completion on their own but are not waited for.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return lserrors.InternalError("Serve called before Listen", nil)
	}

	s.logger.Info("server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Bool("tls", s.tlsConfig != nil),
		slog.Int("max_payload_size", s.guard.Max()),
		slog.Int("max_connections", s.settings.MaxConnections))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	// Requests are not cancelled by shutdown.
	reqCtx := context.WithoutCancel(ctx)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed() || errors.Is(err, net.ErrClosed) {
				break
			}
			delay = nextAcceptDelay(delay)
			s.logger.Error("accept failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		delay = 0

		if s.admission != nil && !s.admission.TryAcquire(1) {
			go s.reject(conn)
			continue
		}

		go func() {
			if s.admission != nil {
				defer s.admission.Release(1)
			}
			s.handle(reqCtx, conn)
		}()
	}

	s.logger.Info("server stopped")
	return ctx.Err()
}

// nextAcceptDelay doubles the previous pause, starting at minAcceptDelay
// and capped at maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown || s.listener == nil {
		return nil
	}
	s.shutdown = true
	return s.listener.Close()
}

func (s *Server) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// reject answers a connection that arrived while the server was saturated.
func (s *Server) reject(conn net.Conn) {
	defer conn.Close()
	ip := engine.RequesterIP(conn.RemoteAddr().String())
	s.logger.Warn("connection rejected, server busy",
		slog.String("requesting_ip", ip),
		slog.String("code", lserrors.ErrCodeServerBusy))

	s.drain(conn)
	_, _ = conn.Write([]byte(FormatError("Server busy", "", ip)))
}

// drain consumes pending input for up to the frame grace window. Closing a
// socket with unread input resets the connection, and the client may then
// never see the reply.
func (s *Server) drain(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.grace()))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, maxDrain))
	_ = conn.SetReadDeadline(time.Time{})
}
