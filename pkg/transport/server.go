package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// ServerConfig configures the listening side used by the desktop peer.
type ServerConfig struct {
	// Address to listen on (e.g., ":8081" or "127.0.0.1:0").
	Address string

	// Session configures each accepted connection. Its Send field is
	// ignored; heartbeats go straight to the session.
	Session SessionConfig

	// Handler builds the message handler for an accepted session.
	Handler func(s *Session) MessageHandler

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// OnConnect is called when a new connection is accepted.
	OnConnect func(s *Session)

	// OnDisconnect is called when a session ends, with the cause.
	OnDisconnect func(s *Session, err error)
}

// Server accepts plain TCP connections and runs a Session for each.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	listener net.Listener

	// Active sessions
	sessions   map[*Session]struct{}
	sessionsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	config.Session.Send = nil
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Session.Logger == nil {
		config.Session.Logger = logger
	}

	return &Server{
		config:   config,
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Start starts listening and accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every session, then waits for them to end.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	s.sessionsMu.RLock()
	for sess := range s.sessions {
		sess.Close()
	}
	s.sessionsMu.RUnlock()

	s.wg.Wait()
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of active sessions.
func (s *Server) ConnectionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// Sessions returns the active sessions.
func (s *Server) Sessions() []*Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	sess := NewSession(conn, s.config.Session, nil)
	if s.config.Handler != nil {
		sess.handler = s.config.Handler(sess)
	}

	s.sessionsMu.Lock()
	s.sessions[sess] = struct{}{}
	s.sessionsMu.Unlock()

	s.logger.Info("peer connected", "conn_id", sess.ID(), "remote", conn.RemoteAddr())
	if s.config.OnConnect != nil {
		s.config.OnConnect(sess)
	}

	err := sess.Run(s.ctx)
	sess.Close()

	s.sessionsMu.Lock()
	delete(s.sessions, sess)
	s.sessionsMu.Unlock()

	s.logger.Info("peer disconnected", "conn_id", sess.ID(), "error", err)
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sess, err)
	}
}
