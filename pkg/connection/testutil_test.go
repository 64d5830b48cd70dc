package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VadymVolin/unde-library/pkg/discovery"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/transport"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

const waitTimeout = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDesk is a listening peer standing in for the desktop tool.
type fakeDesk struct {
	t     *testing.T
	ln    net.Listener
	conns chan net.Conn
}

func newFakeDesk(t *testing.T) *fakeDesk {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDesk{t: t, ln: ln, conns: make(chan net.Conn, 16)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			d.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDesk) endpoint() discovery.Endpoint {
	addr := d.ln.Addr().(*net.TCPAddr)
	return discovery.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

// accept waits for the next connection from the agent.
func (d *fakeDesk) accept() *deskConn {
	d.t.Helper()
	select {
	case conn := <-d.conns:
		d.t.Cleanup(func() { conn.Close() })
		return &deskConn{t: d.t, conn: conn, framer: transport.NewFramer(conn)}
	case <-time.After(waitTimeout):
		d.t.Fatal("timed out waiting for connection")
		return nil
	}
}

// expectNoConnection fails if the agent connects within d.
func (d *fakeDesk) expectNoConnection(wait time.Duration) {
	d.t.Helper()
	select {
	case <-d.conns:
		d.t.Fatal("unexpected connection")
	case <-time.After(wait):
	}
}

type deskConn struct {
	t      *testing.T
	conn   net.Conn
	framer *transport.Framer
	codec  transport.Codec
}

// recv returns the next non-heartbeat message.
func (c *deskConn) recv() wire.Message {
	c.t.Helper()
	for {
		msg, err := c.next()
		require.NoError(c.t, err)
		if _, ok := msg.(*wire.KeepAlive); ok {
			continue
		}
		return msg
	}
}

// next returns the next message of any kind.
func (c *deskConn) next() (wire.Message, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(waitTimeout))
	payload, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(payload)
}

func (c *deskConn) send(msg wire.Message) {
	c.t.Helper()
	payload, err := c.codec.Encode(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.framer.WriteFrame(payload))
}

func (c *deskConn) sendRaw(payload []byte) {
	c.t.Helper()
	require.NoError(c.t, c.framer.WriteFrame(payload))
}

// expectClosed waits until the agent closes the socket.
func (c *deskConn) expectClosed() {
	c.t.Helper()
	for {
		_, err := c.next()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.t.Fatal("timed out waiting for close")
		}
		return
	}
}

// answerHandshake reads the Ping and replies with reply.
func (c *deskConn) answerHandshake(reply string) {
	c.t.Helper()
	msg := c.recv()
	require.Equal(c.t, &wire.Result{Data: transport.HandshakePing}, msg)
	c.send(&wire.Result{Data: reply})
}

func result(s string) *wire.Result {
	return &wire.Result{Data: s}
}

// testConfig returns a configuration with fast reconnects and no heartbeat.
func testConfig(ep discovery.Endpoint) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = ep
	cfg.ConnectTimeout = time.Second
	cfg.DisableKeepAlive = true
	cfg.Backoff = BackoffConfig{
		Base:        10 * time.Millisecond,
		Max:         40 * time.Millisecond,
		MaxAttempts: RetryForever,
	}
	return cfg
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	m := New(cfg, opts...)
	t.Cleanup(m.Destroy)
	return m
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want },
		waitTimeout, 5*time.Millisecond, "state never became %s (is %s)", want, m.State())
}

// dialerFunc adapts a function to transport.Dialer.
type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// failingConn accepts a fixed number of writes, then breaks the socket.
type failingConn struct {
	net.Conn
	remaining atomic.Int32
}

func (c *failingConn) Write(p []byte) (int, error) {
	if c.remaining.Add(-1) < 0 {
		c.Conn.Close()
		return 0, errors.New("injected write failure")
	}
	return c.Conn.Write(p)
}

// recordingLogger captures protocol events.
type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *recordingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) stateChanges() []log.StateChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.StateChangeEvent
	for _, e := range l.events {
		if e.StateChange != nil {
			out = append(out, *e.StateChange)
		}
	}
	return out
}

func (l *recordingLogger) queueOps(op log.QueueOp) []log.QueueEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.QueueEvent
	for _, e := range l.events {
		if e.Queue != nil && e.Queue.Op == op {
			out = append(out, *e.Queue)
		}
	}
	return out
}

// stateRecorder collects OnStateChange transitions.
type stateRecorder struct {
	mu          sync.Mutex
	transitions [][2]State
}

func (r *stateRecorder) record(oldState, newState State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{oldState, newState})
}

func (r *stateRecorder) snapshot() [][2]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]State(nil), r.transitions...)
}

// pipeDialer connects the manager to in-memory peers that never read.
// Every dialed peer end is delivered on peers.
type pipeDialer struct {
	peers chan net.Conn
}

func newPipeDialer(t *testing.T) *pipeDialer {
	d := &pipeDialer{peers: make(chan net.Conn, 64)}
	t.Cleanup(func() {
		for {
			select {
			case p := <-d.peers:
				p.Close()
			default:
				return
			}
		}
	})
	return d
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	local, peer := net.Pipe()
	select {
	case d.peers <- peer:
	default:
		peer.Close()
	}
	return local, nil
}

// waitGoroutines waits until no more goroutines run than at baseline.
func waitGoroutines(t *testing.T, baseline int) {
	t.Helper()
	require.Eventually(t, func() bool { return runtime.NumGoroutine() <= baseline },
		waitTimeout, 10*time.Millisecond, "goroutines still running: %d, baseline %d", runtime.NumGoroutine(), baseline)
}
