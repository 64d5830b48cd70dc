package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client constants.
const (
	// DefaultPort is the port the desktop tool listens on.
	DefaultPort = 8081

	// DefaultConnectTimeout bounds a single dial attempt.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultHandshakeTimeout bounds the wait for the handshake reply.
	DefaultHandshakeTimeout = 5 * time.Second

	// HandshakePing is the Result payload the agent opens with.
	HandshakePing = "Ping"

	// HandshakePong is the Result payload the peer must answer with.
	HandshakePong = "Pong"
)

// Handshake errors.
var (
	// ErrHandshakeTimeout indicates the peer did not answer in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrHandshakeFailed indicates the peer answered with something other than Pong.
	ErrHandshakeFailed = errors.New("handshake failed")
)

// Dialer opens TCP connections to the desktop tool.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientConfig configures outbound connections.
type ClientConfig struct {
	// ConnectTimeout is the dial timeout (default: 15s).
	ConnectTimeout time.Duration

	// Dialer overrides the network dialer. Nil uses net.Dialer.
	Dialer Dialer
}

// Client dials the desktop tool.
type Client struct {
	config ClientConfig
	dialer Dialer
}

// NewClient creates a new client.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{KeepAlive: -1}
	}
	return &Client{config: config, dialer: dialer}
}

// Connect establishes a TCP connection to address. The context bounds the
// attempt in addition to ConnectTimeout.
func (c *Client) Connect(ctx context.Context, address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
