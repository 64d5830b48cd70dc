package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VadymVolin/unde-library/pkg/discovery"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/queue"
	"github.com/VadymVolin/unde-library/pkg/transport"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

// Config configures a Manager. Zero fields take their defaults; start from
// DefaultConfig to get an unlimited reconnect policy.
type Config struct {
	// Endpoint is dialed when no resolver is supplied
	// (default 127.0.0.1:8081).
	Endpoint discovery.Endpoint

	// ConnectTimeout bounds a single dial (default 15s).
	ConnectTimeout time.Duration

	// WriteTimeout bounds a single frame write, so a peer that stops
	// reading cannot hold Send callers indefinitely. Zero means the
	// keep-alive timeout; a negative value disables it.
	WriteTimeout time.Duration

	// Handshake requires a Ping/Pong exchange before the connection counts
	// as established.
	Handshake bool

	// HandshakeTimeout bounds the wait for Pong (default 5s).
	HandshakeTimeout time.Duration

	// Compression gzips outgoing payloads.
	Compression bool

	// MaxFrameSize bounds frame payloads (default 50 MiB).
	MaxFrameSize uint64

	// Backoff is the reconnect policy. The zero value means
	// DefaultBackoffConfig.
	Backoff BackoffConfig

	// KeepAlive configures the liveness monitor.
	KeepAlive transport.KeepAliveConfig

	// DisableKeepAlive turns the liveness monitor off.
	DisableKeepAlive bool

	// QueueMaxSize bounds the offline queue (default 1000). A negative
	// value means unbounded.
	QueueMaxSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:         discovery.Endpoint{Host: discovery.DeviceHost, Port: discovery.DefaultPort},
		ConnectTimeout:   transport.DefaultConnectTimeout,
		WriteTimeout:     transport.DefaultKeepAliveTimeout,
		HandshakeTimeout: transport.DefaultHandshakeTimeout,
		MaxFrameSize:     transport.DefaultMaxFrameSize,
		Backoff:          DefaultBackoffConfig(),
		KeepAlive:        transport.DefaultKeepAliveConfig(),
		QueueMaxSize:     queue.DefaultMaxSize,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Endpoint.Host == "" {
		c.Endpoint.Host = def.Endpoint.Host
	}
	if c.Endpoint.Port == 0 {
		c.Endpoint.Port = def.Endpoint.Port
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = c.KeepAlive.Timeout
		if c.WriteTimeout <= 0 {
			c.WriteTimeout = def.WriteTimeout
		}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.QueueMaxSize == 0 {
		c.QueueMaxSize = def.QueueMaxSize
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver sets the endpoint resolver, consulted once per attempt.
func WithResolver(r discovery.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithHandler replaces the default inbound message handler.
func WithHandler(h transport.MessageHandler) Option {
	return func(m *Manager) { m.handler = h }
}

// WithCommandHandler sets the callback the default handler invokes for
// Command messages.
func WithCommandHandler(fn func(*wire.Command)) Option {
	return func(m *Manager) { m.onCommand = fn }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithProtocolLogger enables protocol capture.
func WithProtocolLogger(l log.Logger) Option {
	return func(m *Manager) { m.protoLogger = l }
}

// WithDialer overrides the network dialer.
func WithDialer(d transport.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// Stats is a snapshot of manager counters.
type Stats struct {
	State State

	// ConnectionID identifies the live session, if any.
	ConnectionID string

	// Attempts is the number of reconnects scheduled since the last
	// successful connect.
	Attempts int

	// Connects counts established connections.
	Connects uint64

	// Sent counts application messages accepted by the socket.
	Sent uint64

	// Queued is the current offline backlog.
	Queued int

	// Dropped counts messages evicted by queue overflow.
	Dropped uint64

	// Discarded counts messages that could not be encoded or framed, and
	// sends after Destroy.
	Discarded uint64

	// Session holds the live session's statistics, if any.
	Session *transport.SessionStats
}

// Manager keeps one logical connection to the desktop tool alive and
// relays messages over it in Send order.
//
// Lock order: sendMu before mu.
type Manager struct {
	config      Config
	resolver    discovery.Resolver
	handler     transport.MessageHandler
	onCommand   func(*wire.Command)
	dialer      transport.Dialer
	client      *transport.Client
	logger      *slog.Logger
	protoLogger log.Logger
	emitter     log.Emitter

	state   atomic.Int32
	backoff *Backoff
	queue   *queue.Queue[wire.Message]

	// sendMu serializes every socket write with queue mutations.
	sendMu sync.Mutex

	mu            sync.Mutex
	running       bool
	destroyed     bool
	halted        bool
	ctx           context.Context
	cancel        context.CancelFunc
	session       *transport.Session
	sessCancel    context.CancelFunc
	onStateChange func(oldState, newState State)
	wg            sync.WaitGroup

	connects  atomic.Uint64
	sent      atomic.Uint64
	discarded atomic.Uint64
}

// New creates a manager. Nothing happens on the network until Initialize.
func New(config Config, opts ...Option) *Manager {
	config = config.withDefaults()

	m := &Manager{
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.resolver == nil {
		m.resolver = &discovery.StaticResolver{Endpoint: config.Endpoint}
	}
	if m.handler == nil {
		m.handler = transport.MessageHandlerFunc(m.handleInbound)
	}
	m.client = transport.NewClient(transport.ClientConfig{
		ConnectTimeout: config.ConnectTimeout,
		Dialer:         m.dialer,
	})
	m.backoff = NewBackoffWithConfig(config.Backoff)
	m.queue = queue.New[wire.Message](config.QueueMaxSize)
	m.emitter = log.Emitter{Logger: m.protoLogger}

	return m
}

// Initialize starts connecting in the background. Calling it while running
// is a no-op, unless reconnection stopped after MaxAttempts; then the
// backoff is reset and a new attempt starts. After Destroy it starts a
// fresh run.
func (m *Manager) Initialize() {
	m.mu.Lock()
	if m.running {
		halted := m.halted
		m.halted = false
		m.mu.Unlock()

		if !halted {
			m.logger.Warn("connection manager already initialized")
			return
		}
		m.logger.Info("restarting reconnection after attempts were exhausted")
		m.backoff.Reset()
		m.spawn(m.connect)
		return
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true
	m.destroyed = false
	m.halted = false
	m.mu.Unlock()

	m.backoff.Reset()
	m.logger.Info("connection manager initialized", "queued", m.queue.Len())
	m.spawn(m.connect)
}

// Destroy stops all background work, closes the socket and discards the
// queue. It is idempotent and never fails. Messages sent afterwards are
// dropped until the next Initialize.
func (m *Manager) Destroy() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.destroyed = true
	m.halted = false
	cancel := m.cancel
	sess := m.session
	sessCancel := m.sessCancel
	m.session = nil
	m.sessCancel = nil
	m.mu.Unlock()

	if sessCancel != nil {
		sessCancel()
	}
	if cancel != nil {
		cancel()
	}
	if sess != nil {
		_ = sess.Close()
	}
	m.wg.Wait()

	m.sendMu.Lock()
	cleared := m.queue.Clear()
	old := State(m.state.Swap(int32(StateDisconnected)))
	m.sendMu.Unlock()

	if cleared > 0 {
		m.logger.Info("discarded queued messages", "count", cleared)
		m.emitter.Queue(log.QueueOpClear, "", 0, cleared)
	}
	if old != StateDisconnected {
		m.notify(old, StateDisconnected, "destroyed")
	}
	if wasRunning {
		m.logger.Info("connection manager destroyed")
	}
}

// Send relays msg. When connected with an empty backlog the message is
// written immediately; otherwise it is queued and flushed in order once
// connected. KeepAlive messages are never queued. Send never fails; it is
// safe for concurrent use.
func (m *Manager) Send(msg wire.Message) {
	if msg == nil {
		return
	}

	m.sendMu.Lock()

	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		m.sendMu.Unlock()
		m.discarded.Add(1)
		m.logger.Debug("dropping message after destroy", "kind", msg.Kind())
		return
	}

	_, heartbeat := msg.(*wire.KeepAlive)

	if m.State() == StateConnected {
		sess := m.currentSession()
		if sess != nil && (heartbeat || m.queue.Len() == 0) {
			err := sess.Write(msg)
			switch {
			case err == nil:
				if !heartbeat {
					m.sent.Add(1)
				}
				m.sendMu.Unlock()
			case transport.IsMessageError(err):
				m.sendMu.Unlock()
				m.discard(msg, err)
			default:
				if !heartbeat {
					m.queue.PushFront(msg)
					m.emitter.Queue(log.QueueOpRequeue, msg.Kind().String(), m.queue.Len(), 1)
				}
				m.sendMu.Unlock()
				m.handleDisconnect(sess, err)
			}
			return
		}
	}

	if !heartbeat {
		m.enqueue(msg)
	}
	m.sendMu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Halted reports whether reconnection stopped after MaxAttempts.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// OnStateChange sets a callback for state changes. It runs on the
// goroutine that made the change and must not block.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// Stats returns a snapshot of manager statistics.
func (m *Manager) Stats() Stats {
	sess := m.currentSession()

	st := Stats{
		State:     m.State(),
		Attempts:  m.backoff.Attempts(),
		Connects:  m.connects.Load(),
		Sent:      m.sent.Load(),
		Queued:    m.queue.Len(),
		Dropped:   m.queue.Dropped(),
		Discarded: m.discarded.Load(),
	}
	if sess != nil {
		ss := sess.Stats()
		st.ConnectionID = ss.ID
		st.Session = &ss
	}
	return st
}

// spawn runs fn on a tracked goroutine bound to the current run. It does
// nothing once Destroy has started.
func (m *Manager) spawn(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	ctx := m.ctx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
	return true
}

func (m *Manager) currentSession() *transport.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// connect performs one connection attempt. It is a no-op unless the
// manager is disconnected or waiting to reconnect. On success it stays to
// run the session until the connection ends.
func (m *Manager) connect(ctx context.Context) {
	old := m.State()
	if old != StateDisconnected && old != StateReconnecting {
		return
	}
	if !m.transition(old, StateConnecting, "") {
		return
	}

	sess, err := m.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("connect failed", "error", err)
		m.emitter.Error(log.LayerConnection, err, "connect")
		m.transition(StateConnecting, StateDisconnected, err.Error())
		m.scheduleReconnect()
		return
	}

	// Destroy clears running under mu before cancelling ctx.
	m.mu.Lock()
	if !m.running || ctx.Err() != nil {
		m.mu.Unlock()
		_ = sess.Close()
		return
	}
	sessCtx, sessCancel := context.WithCancel(ctx)
	m.session = sess
	m.sessCancel = sessCancel
	m.mu.Unlock()

	m.backoff.Reset()
	m.connects.Add(1)
	m.transition(StateConnecting, StateConnected, "")
	m.logger.Info("connected", "conn_id", sess.ID(), "remote", sess.RemoteAddr(), "queued", m.queue.Len())

	m.spawn(func(context.Context) { m.flush(sess) })

	if err := sess.Run(sessCtx); err != nil {
		m.handleDisconnect(sess, err)
		return
	}

	// Run ended by cancellation. Release the session unless Destroy or
	// handleDisconnect already took it.
	m.mu.Lock()
	owned := m.session == sess
	if owned {
		m.session = nil
		m.sessCancel = nil
	}
	m.mu.Unlock()
	sessCancel()
	if owned {
		_ = sess.Close()
	}
}

// dial resolves the endpoint, opens the socket and runs the optional
// handshake.
func (m *Manager) dial(ctx context.Context) (*transport.Session, error) {
	ep, err := m.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	conn, err := m.client.Connect(ctx, ep.Address())
	if err != nil {
		return nil, err
	}

	sess := transport.NewSession(conn, transport.SessionConfig{
		Codec:            transport.Codec{Compress: m.config.Compression},
		MaxFrameSize:     m.config.MaxFrameSize,
		WriteTimeout:     m.config.WriteTimeout,
		KeepAlive:        m.config.KeepAlive,
		DisableKeepAlive: m.config.DisableKeepAlive,
		Send:             m.Send,
		Logger:           m.logger,
		ProtocolLogger:   m.protoLogger,
	}, m.handler)

	if m.config.Handshake {
		if err := sess.Handshake(ctx, m.config.HandshakeTimeout); err != nil {
			_ = sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

// flush drains the offline queue in order onto sess. A message leaves the
// queue only after the socket accepted it.
func (m *Manager) flush(sess *transport.Session) {
	flushed := 0
	for {
		m.sendMu.Lock()
		if m.currentSession() != sess || m.State() != StateConnected {
			m.sendMu.Unlock()
			return
		}
		msg, ok := m.queue.Peek()
		if !ok {
			m.sendMu.Unlock()
			break
		}

		err := sess.Write(msg)
		if err != nil && !transport.IsMessageError(err) {
			remaining := m.queue.Len()
			m.sendMu.Unlock()
			m.logger.Warn("flush interrupted", "flushed", flushed, "remaining", remaining, "error", err)
			m.handleDisconnect(sess, err)
			return
		}
		m.queue.Pop()
		if err == nil {
			flushed++
			m.sent.Add(1)
		}
		m.sendMu.Unlock()

		if err != nil {
			m.discard(msg, err)
		}
	}

	if flushed > 0 {
		m.logger.Info("flushed offline queue", "count", flushed)
		e := m.emitter
		e.ConnectionID = sess.ID()
		e.Queue(log.QueueOpFlush, "", m.queue.Len(), flushed)
	}
}

// handleDisconnect tears down sess after a failure and schedules a
// reconnect. Only the first caller for a given session has any effect.
func (m *Manager) handleDisconnect(sess *transport.Session, cause error) {
	m.mu.Lock()
	if m.session != sess || !m.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected)) {
		m.mu.Unlock()
		return
	}
	m.session = nil
	cancel := m.sessCancel
	m.sessCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = sess.Close()

	m.logger.Warn("connection lost", "conn_id", sess.ID(), "error", cause, "queued", m.queue.Len())
	m.emitter.Error(log.LayerConnection, cause, "disconnect")
	m.notify(StateConnected, StateDisconnected, disconnectReason(cause))
	m.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer, or marks the manager halted
// when the attempt limit is reached.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}

	delay, ok := m.backoff.Next()
	if !ok {
		m.mu.Lock()
		m.halted = true
		m.mu.Unlock()
		m.logger.Warn("reconnect attempts exhausted, call Initialize to retry",
			"max_attempts", m.config.Backoff.MaxAttempts, "queued", m.queue.Len())
		m.emitter.State(log.StateEntityConnection, StateDisconnected.String(), StateDisconnected.String(), "reconnect attempts exhausted")
		return
	}

	if !m.state.CompareAndSwap(int32(StateDisconnected), int32(StateReconnecting)) {
		return
	}
	attempt := m.backoff.Attempts()
	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	m.emitter.Emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerConnection,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: StateDisconnected.String(),
			NewState: StateReconnecting.String(),
			Attempt:  attempt,
			Delay:    delay,
		},
	})
	m.fireStateChange(StateDisconnected, StateReconnecting)

	m.spawn(func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		m.connect(ctx)
	})
}

// transition moves between states by compare-and-swap and reports the
// change.
func (m *Manager) transition(oldState, newState State, reason string) bool {
	if !m.state.CompareAndSwap(int32(oldState), int32(newState)) {
		return false
	}
	m.notify(oldState, newState, reason)
	return true
}

func (m *Manager) notify(oldState, newState State, reason string) {
	m.logger.Debug("connection state changed", "from", oldState.String(), "to", newState.String(), "reason", reason)
	m.emitter.State(log.StateEntityConnection, oldState.String(), newState.String(), reason)
	m.fireStateChange(oldState, newState)
}

func (m *Manager) fireStateChange(oldState, newState State) {
	m.mu.Lock()
	fn := m.onStateChange
	m.mu.Unlock()
	if fn != nil {
		fn(oldState, newState)
	}
}

func (m *Manager) enqueue(msg wire.Message) {
	dropped := m.queue.Push(msg)
	depth := m.queue.Len()
	kind := msg.Kind().String()

	m.emitter.Queue(log.QueueOpEnqueue, kind, depth, 1)
	if dropped > 0 {
		m.logger.Warn("offline queue full, dropped oldest", "dropped", dropped, "max_size", m.config.QueueMaxSize)
		m.emitter.Queue(log.QueueOpDrop, "", depth, dropped)
	}
}

func (m *Manager) discard(msg wire.Message, err error) {
	m.discarded.Add(1)
	m.logger.Error("dropping unsendable message", "kind", msg.Kind(), "error", err)
	m.emitter.Error(log.LayerWire, err, "send "+msg.Kind().String())
}

// handleInbound is the default message handler.
func (m *Manager) handleInbound(msg wire.Message) {
	switch msg := msg.(type) {
	case *wire.KeepAlive:
	case *wire.Command:
		m.logger.Info("command received", "size", len(msg.Data))
		if m.onCommand != nil {
			m.onCommand(msg)
		}
	case *wire.Result:
		m.logger.Info("result received", "data", msg.Data)
	default:
		m.logger.Debug("message received", "kind", msg.Kind())
	}
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, transport.ErrKeepAliveTimeout):
		return "keep-alive timeout"
	case errors.Is(err, transport.ErrPeerClosed):
		return "peer closed"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}
