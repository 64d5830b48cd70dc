package transport

import (
	"context"
	"net"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// MessageWriter writes one message as one frame.
// Implemented by Session.
type MessageWriter interface {
	Write(msg wire.Message) error
}

// Conn is an established, running connection as seen by the connection
// manager. Implemented by Session.
type Conn interface {
	MessageWriter

	// ID returns the unique connection identifier.
	ID() string

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr

	// Run blocks until ctx ends or the connection fails.
	Run(ctx context.Context) error

	// Close closes the socket.
	Close() error
}

// TransportServer accepts connections.
// Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop closes the listener and all sessions.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Conn            = (*Session)(nil)
	_ TransportServer = (*Server)(nil)
	_ FrameReadWriter = (*Framer)(nil)
	_ Dialer          = (*net.Dialer)(nil)
	_ MessageHandler  = MessageHandlerFunc(nil)
)
