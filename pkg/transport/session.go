package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

// Session errors.
var (
	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrPeerClosed indicates the peer closed the stream between frames.
	ErrPeerClosed = errors.New("connection closed by peer")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrEncode indicates a message could not be serialized. The
	// connection is unaffected.
	ErrEncode = errors.New("encode message")
)

// MessageHandler receives every decoded inbound message.
type MessageHandler interface {
	HandleMessage(msg wire.Message)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(msg wire.Message)

// HandleMessage calls f(msg).
func (f MessageHandlerFunc) HandleMessage(msg wire.Message) {
	f(msg)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Codec controls compression of outgoing payloads.
	Codec Codec

	// MaxFrameSize bounds inbound and outbound payloads (default 50 MiB).
	MaxFrameSize uint64

	// WriteTimeout bounds a single frame write. Zero disables it.
	WriteTimeout time.Duration

	// KeepAlive configures the liveness monitor.
	KeepAlive KeepAliveConfig

	// DisableKeepAlive turns the liveness monitor off.
	DisableKeepAlive bool

	// Send is the path heartbeats take. Nil writes them directly on
	// this session.
	Send SendFunc

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. Nil disables capture.
	ProtocolLogger log.Logger
}

// Session owns one established socket: it runs the read loop and the
// keep-alive monitor, and serializes writes.
type Session struct {
	id      string
	conn    net.Conn
	framer  *Framer
	codec   Codec
	handler MessageHandler

	writeTimeout time.Duration
	writeMu      sync.Mutex

	keepAlive      *KeepAlive
	resetOnAnyMsg  bool
	logger         *slog.Logger
	emitter        log.Emitter
	establishedAt  time.Time
	running        atomic.Bool
	closed         atomic.Bool
	closeOnce      sync.Once
	framesIn       atomic.Uint64
	framesOut      atomic.Uint64
	decodeFailures atomic.Uint64
}

// NewSession wraps an established connection. handler may be nil.
func NewSession(conn net.Conn, config SessionConfig, handler MessageHandler) *Session {
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.Codec.MaxDecompressedSize == 0 {
		config.Codec.MaxDecompressedSize = int64(config.MaxFrameSize)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	s := &Session{
		id:            id,
		conn:          conn,
		framer:        NewFramerWithMaxSize(conn, config.MaxFrameSize),
		codec:         config.Codec,
		handler:       handler,
		writeTimeout:  config.WriteTimeout,
		resetOnAnyMsg: config.KeepAlive.ResetOnAnyMessage,
		logger:        logger.With("conn_id", id, "remote", remote),
		emitter:       log.Emitter{Logger: config.ProtocolLogger, ConnectionID: id, RemoteAddr: remote},
		establishedAt: time.Now(),
	}
	if config.ProtocolLogger != nil {
		s.framer.SetLogger(config.ProtocolLogger, id)
	}

	if !config.DisableKeepAlive {
		send := config.Send
		if send == nil {
			send = func(msg wire.Message) {
				if err := s.Write(msg); err != nil {
					s.logger.Debug("heartbeat write failed", "error", err)
				}
			}
		}
		s.keepAlive = NewKeepAlive(config.KeepAlive, send, func() {
			s.logger.Warn("peer silent, keep-alive timeout")
		})
	}

	return s
}

// ID returns the unique connection identifier.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Run reads frames and drives the keep-alive monitor until ctx is
// cancelled or the connection fails. It returns nil when ctx ended, and
// otherwise the first cause: ErrPeerClosed, a read error, a framing error
// or ErrKeepAliveTimeout. Run never closes the socket.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.readLoop(gctx)
	})
	if s.keepAlive != nil {
		g.Go(func() error {
			return s.keepAlive.Run(gctx)
		})
	}
	g.Go(func() error {
		// Unblock a pending read without closing the socket.
		<-gctx.Done()
		_ = s.conn.SetReadDeadline(time.Now())
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		payload, err := s.framer.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ErrPeerClosed
			}
			return err
		}
		s.framesIn.Add(1)

		msg, err := s.codec.Decode(payload)
		if err != nil {
			s.decodeFailures.Add(1)
			s.logger.Warn("dropping undecodable frame", "size", len(payload), "error", err)
			s.emitter.Error(log.LayerWire, err, "decode")
			continue
		}
		s.logMessage(msg, log.DirectionIn, payload)

		if s.keepAlive != nil {
			if _, ok := msg.(*wire.KeepAlive); ok || s.resetOnAnyMsg {
				s.keepAlive.Received()
			}
		}

		s.dispatch(msg)
	}
}

// dispatch hands msg to the handler. A panicking handler does not stop
// the read loop.
func (s *Session) dispatch(msg wire.Message) {
	if s.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message handler panicked", "kind", msg.Kind(), "panic", r)
			s.emitter.Error(log.LayerWire, fmt.Errorf("handler panic: %v", r), "dispatch")
		}
	}()
	s.handler.HandleMessage(msg)
}

// Write encodes msg and writes it as one frame. Concurrent writers are
// serialized. Errors wrapping ErrEncode or ErrFrameTooLarge concern only
// this message; any other error means the connection is unusable.
func (s *Session) Write(msg wire.Message) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	payload, err := s.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	}

	if err := s.framer.WriteFrame(payload); err != nil {
		if s.closed.Load() {
			return ErrSessionClosed
		}
		return err
	}
	s.framesOut.Add(1)
	s.logMessage(msg, log.DirectionOut, payload)

	return nil
}

// Handshake sends Result "Ping" and waits up to timeout for Result "Pong".
// It must be called before Run.
func (s *Session) Handshake(ctx context.Context, timeout time.Duration) error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	if err := s.Write(&wire.Result{Data: HandshakePing}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	s.logControl(log.ControlMsgPing, log.DirectionOut)

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetReadDeadline(deadline)
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		payload, err := s.framer.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return ErrHandshakeTimeout
			}
			return fmt.Errorf("handshake: %w", err)
		}
		s.framesIn.Add(1)

		msg, err := s.codec.Decode(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		s.logMessage(msg, log.DirectionIn, payload)

		switch m := msg.(type) {
		case *wire.KeepAlive:
			// A peer may start heartbeating before answering.
			continue
		case *wire.Result:
			if m.Data == HandshakePong {
				s.logControl(log.ControlMsgPong, log.DirectionIn)
				return nil
			}
			return fmt.Errorf("%w: unexpected result %q", ErrHandshakeFailed, m.Data)
		default:
			return fmt.Errorf("%w: unexpected %s message", ErrHandshakeFailed, msg.Kind())
		}
	}
}

// Close closes the socket. Safe to call multiple times.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.logControl(log.ControlMsgClose, log.DirectionLocal)
		err = s.conn.Close()
	})
	return err
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Stats returns session statistics.
func (s *Session) Stats() SessionStats {
	st := SessionStats{
		ID:             s.id,
		EstablishedAt:  s.establishedAt,
		FramesIn:       s.framesIn.Load(),
		FramesOut:      s.framesOut.Load(),
		DecodeFailures: s.decodeFailures.Load(),
	}
	if addr := s.conn.RemoteAddr(); addr != nil {
		st.RemoteAddr = addr.String()
	}
	if s.keepAlive != nil {
		st.KeepAlive = s.keepAlive.Stats()
	}
	return st
}

// SessionStats contains session statistics.
type SessionStats struct {
	ID             string
	RemoteAddr     string
	EstablishedAt  time.Time
	FramesIn       uint64
	FramesOut      uint64
	DecodeFailures uint64
	KeepAlive      KeepAliveStats
}

func (s *Session) logMessage(msg wire.Message, direction log.Direction, payload []byte) {
	if !s.emitter.Enabled() {
		return
	}
	ev := &log.MessageEvent{
		Kind:       msg.Kind().String(),
		Size:       len(payload),
		Compressed: IsCompressed(payload),
	}
	if n, ok := msg.(*wire.Network); ok {
		ev.Summary = n.Data.Summary()
	}
	s.emitter.Emit(log.Event{
		Direction: direction,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   ev,
	})
}

func (s *Session) logControl(t log.ControlMsgType, direction log.Direction) {
	s.emitter.Emit(log.Event{
		Direction:  direction,
		Layer:      log.LayerWire,
		Category:   log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{Type: t},
	})
}

// IsMessageError reports whether err from Write concerns only the message
// and leaves the connection usable.
func IsMessageError(err error) bool {
	return errors.Is(err, ErrEncode) || errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrFrameEmpty)
}
