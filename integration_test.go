package unde_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VadymVolin/unde-library/pkg/capture"
	"github.com/VadymVolin/unde-library/pkg/config"
	"github.com/VadymVolin/unde-library/pkg/connection"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/transport"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

// desk is a minimal desktop peer that answers the handshake and records
// every other message.
type desk struct {
	server *transport.Server

	mu   sync.Mutex
	msgs []wire.Message
}

func startDesk(t *testing.T, addr string) *desk {
	t.Helper()
	d := &desk{}
	d.server = transport.NewServer(transport.ServerConfig{
		Address: addr,
		Session: transport.SessionConfig{KeepAlive: transport.KeepAliveConfig{
			Interval: 50 * time.Millisecond,
			Timeout:  500 * time.Millisecond,
		}},
		Handler: func(s *transport.Session) transport.MessageHandler {
			return transport.MessageHandlerFunc(func(msg wire.Message) {
				switch m := msg.(type) {
				case *wire.KeepAlive:
					return
				case *wire.Result:
					if m.Data == transport.HandshakePing {
						_ = s.Write(&wire.Result{Data: transport.HandshakePong})
						return
					}
				}
				d.mu.Lock()
				d.msgs = append(d.msgs, msg)
				d.mu.Unlock()
			})
		},
	})
	require.NoError(t, d.server.Start(context.Background()))
	t.Cleanup(func() { d.server.Stop() })
	return d
}

func (d *desk) port(t *testing.T) int {
	t.Helper()
	_, p, err := net.SplitHostPort(d.server.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func (d *desk) received() []wire.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]wire.Message(nil), d.msgs...)
}

func (d *desk) waitFor(t *testing.T, n int) []wire.Message {
	t.Helper()
	require.Eventually(t, func() bool { return len(d.received()) >= n }, 5*time.Second, 10*time.Millisecond,
		"desk received %d messages, want %d", len(d.received()), n)
	return d.received()
}

func agentConfig(port int) *config.AgentConfig {
	cfg := config.Default()
	cfg.Server.Discovery = config.DiscoveryStatic
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Connection.Handshake = true
	cfg.Reconnect.BaseDelay = 20 * time.Millisecond
	cfg.Reconnect.MaxDelay = 100 * time.Millisecond
	cfg.KeepAlive.Interval = 50 * time.Millisecond
	cfg.KeepAlive.Timeout = 500 * time.Millisecond
	return cfg
}

func newManager(t *testing.T, cfg *config.AgentConfig, opts ...connection.Option) *connection.Manager {
	t.Helper()
	opts = append([]connection.Option{connection.WithResolver(cfg.Resolver())}, opts...)
	m := connection.New(cfg.ManagerConfig(), opts...)
	t.Cleanup(m.Destroy)
	return m
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func logcat(t *testing.T, i int) *wire.Logcat {
	t.Helper()
	data, err := wire.NewObject(map[string]int{"seq": i})
	require.NoError(t, err)
	return &wire.Logcat{Data: data}
}

func seqOf(t *testing.T, msg wire.Message) int {
	t.Helper()
	lc, ok := msg.(*wire.Logcat)
	require.True(t, ok, "unexpected %T", msg)
	var v struct{ Seq int }
	require.NoError(t, json.Unmarshal(lc.Data, &v))
	return v.Seq
}

func TestCapturedExchangeReachesDesk(t *testing.T) {
	d := startDesk(t, "127.0.0.1:0")
	cfg := agentConfig(d.port(t))
	cfg.Connection.Compression = true

	m := newManager(t, cfg)
	m.Initialize()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[1,2,3]}`))
	}))
	defer api.Close()

	client := capture.NewClient(m, cfg.CaptureOptions())
	resp, err := client.Get(api.URL + "/items")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	msgs := d.waitFor(t, 1)
	n, ok := msgs[0].(*wire.Network)
	require.True(t, ok, "unexpected %T", msgs[0])
	assert.Equal(t, "GET", n.Data.Request.Method)
	assert.Equal(t, api.URL+"/items", n.Data.Request.URL)
	assert.Equal(t, 200, n.Data.Response.Code)
	require.NotNil(t, n.Data.Response.Body)
	assert.JSONEq(t, `{"items":[1,2,3]}`, *n.Data.Response.Body)
}

func TestOfflineBacklogDeliveredInOrder(t *testing.T) {
	port := freePort(t)
	cfg := agentConfig(port)

	m := newManager(t, cfg)
	m.Initialize()

	for i := 0; i < 5; i++ {
		m.Send(logcat(t, i))
	}
	assert.Equal(t, 5, m.Stats().Queued)

	d := startDesk(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	msgs := d.waitFor(t, 5)
	for i, msg := range msgs[:5] {
		assert.Equal(t, i, seqOf(t, msg))
	}
	assert.Eventually(t, func() bool { return m.Stats().Queued == 0 }, time.Second, 10*time.Millisecond)
}

func TestReconnectAfterDeskRestart(t *testing.T) {
	d := startDesk(t, "127.0.0.1:0")
	port := d.port(t)
	cfg := agentConfig(port)

	m := newManager(t, cfg)
	m.Initialize()
	require.Eventually(t, m.IsConnected, 5*time.Second, 10*time.Millisecond)

	m.Send(logcat(t, 0))
	d.waitFor(t, 1)

	require.NoError(t, d.server.Stop())
	require.Eventually(t, func() bool { return !m.IsConnected() }, 5*time.Second, 10*time.Millisecond)

	m.Send(logcat(t, 1))
	m.Send(logcat(t, 2))

	d2 := startDesk(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	msgs := d2.waitFor(t, 2)
	assert.Equal(t, 1, seqOf(t, msgs[0]))
	assert.Equal(t, 2, seqOf(t, msgs[1]))
	assert.GreaterOrEqual(t, m.Stats().Connects, uint64(2))
}

func TestProtocolLogRecordsSession(t *testing.T) {
	d := startDesk(t, "127.0.0.1:0")
	cfg := agentConfig(d.port(t))
	cfg.Logging.ProtocolLog = filepath.Join(t.TempDir(), "agent.ulog")

	fl, err := cfg.NewProtocolLogger()
	require.NoError(t, err)
	require.NotNil(t, fl)

	m := newManager(t, cfg, connection.WithProtocolLogger(fl))
	m.Initialize()
	m.Send(logcat(t, 7))
	d.waitFor(t, 1)

	m.Destroy()
	require.NoError(t, fl.Close())

	reader, err := log.NewReader(cfg.Logging.ProtocolLog)
	require.NoError(t, err)
	defer reader.Close()
	events, err := reader.All()
	require.NoError(t, err)

	var sawConnected, sawPing, sawLogcat bool
	for _, e := range events {
		switch {
		case e.StateChange != nil && e.StateChange.NewState == connection.StateConnected.String():
			sawConnected = true
		case e.ControlMsg != nil && e.ControlMsg.Type == log.ControlMsgPing:
			sawPing = true
		case e.Message != nil && e.Message.Kind == wire.KindLogcat.String() && e.Direction == log.DirectionOut:
			sawLogcat = true
		}
	}
	assert.True(t, sawConnected, "no CONNECTED state event")
	assert.True(t, sawPing, "no handshake ping event")
	assert.True(t, sawLogcat, "no outbound logcat message")
}
