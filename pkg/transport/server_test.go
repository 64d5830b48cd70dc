package transport

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

func startServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()
	config.Address = "127.0.0.1:0"
	srv := NewServer(config)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestServerAnswersHandshake(t *testing.T) {
	srv := startServer(t, ServerConfig{
		Session: SessionConfig{DisableKeepAlive: true},
		Handler: func(s *Session) MessageHandler {
			return MessageHandlerFunc(func(msg wire.Message) {
				if r, ok := msg.(*wire.Result); ok && r.Data == HandshakePing {
					s.Write(&wire.Result{Data: HandshakePong})
				}
			})
		},
	})

	conn, err := NewClient(ClientConfig{}).Connect(context.Background(), srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	sess := NewSession(conn, SessionConfig{DisableKeepAlive: true}, nil)
	assert.NoError(t, sess.Handshake(context.Background(), time.Second))
}

func TestServerTracksSessions(t *testing.T) {
	var connected, disconnected atomic.Int32
	srv := startServer(t, ServerConfig{
		Session:      SessionConfig{DisableKeepAlive: true},
		OnConnect:    func(*Session) { connected.Add(1) },
		OnDisconnect: func(*Session, error) { disconnected.Add(1) },
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, srv.Sessions(), 1)

	conn.Close()
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), connected.Load())
	assert.Equal(t, int32(1), disconnected.Load())
}

func TestServerStopClosesSessions(t *testing.T) {
	srv := NewServer(ServerConfig{Address: "127.0.0.1:0", Session: SessionConfig{DisableKeepAlive: true}})
	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Stop())
	assert.Equal(t, 0, srv.ConnectionCount())
	assert.NoError(t, srv.Stop())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "peer socket should be closed")
}

func TestClientConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient(ClientConfig{ConnectTimeout: time.Second}).Connect(context.Background(), addr)
	assert.Error(t, err)
}

// recordingDialer counts dial attempts and delegates to net.Dialer.
type recordingDialer struct {
	calls atomic.Int32
	net.Dialer
}

func (d *recordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	return d.Dialer.DialContext(ctx, network, address)
}

func TestClientCustomDialer(t *testing.T) {
	srv := startServer(t, ServerConfig{Session: SessionConfig{DisableKeepAlive: true}})

	d := &recordingDialer{}
	conn, err := NewClient(ClientConfig{Dialer: d}).Connect(context.Background(), srv.Addr().String())
	require.NoError(t, err)
	conn.Close()

	assert.Equal(t, int32(1), d.calls.Load())
}
