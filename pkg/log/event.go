package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	// Empty for events raised while no connection exists.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Handshake
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
	Queue       *QueueEvent       `cbor:"15,keyasint,omitempty"` // Outbound buffering
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event with no peer involvement.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded JSON).
	LayerWire Layer = 1
	// LayerConnection is the connection manager (state, queue, reconnect).
	LayerConnection Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or a decoded message.
	CategoryMessage Category = 0
	// CategoryControl indicates a handshake exchange.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryQueue indicates outbound queue activity.
	CategoryQueue Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw payload bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message at the wire layer.
type MessageEvent struct {
	// Kind is the discriminator token ("network", "keepalive", ...).
	Kind string `cbor:"1,keyasint"`

	// Size is the frame payload size in bytes (after compression, if any).
	Size int `cbor:"2,keyasint"`

	// Summary is a short human-readable description, e.g. "GET https://x -> 200".
	Summary string `cbor:"3,keyasint,omitempty"`

	// Compressed indicates the frame payload was gzip-compressed.
	Compressed bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Attempt is the reconnect attempt number, when scheduling a reconnect.
	Attempt int `cbor:"5,keyasint,omitempty"`

	// Delay is the backoff wait before the next attempt.
	Delay time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection manager state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session (socket) lifecycle change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures handshake messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a handshake ping.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgPong indicates a handshake pong.
	ControlMsgPong ControlMsgType = 1
	// ControlMsgClose indicates the socket was closed locally.
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// QueueEvent captures outbound queue activity.
type QueueEvent struct {
	// Op is what happened to the queue.
	Op QueueOp `cbor:"1,keyasint"`

	// Kind is the message kind involved (empty for flush/clear).
	Kind string `cbor:"2,keyasint,omitempty"`

	// Depth is the queue length after the operation.
	Depth int `cbor:"3,keyasint"`

	// Count is the number of messages affected.
	Count int `cbor:"4,keyasint,omitempty"`
}

// QueueOp indicates the kind of queue operation.
type QueueOp uint8

const (
	// QueueOpEnqueue indicates a message was buffered.
	QueueOpEnqueue QueueOp = 0
	// QueueOpDrop indicates overflow discarded the oldest messages.
	QueueOpDrop QueueOp = 1
	// QueueOpFlush indicates buffered messages were written after connecting.
	QueueOpFlush QueueOp = 2
	// QueueOpRequeue indicates a failed write put a message back at the head.
	QueueOpRequeue QueueOp = 3
	// QueueOpClear indicates the queue was discarded on shutdown.
	QueueOpClear QueueOp = 4
)

// String returns the queue operation name.
func (q QueueOp) String() string {
	switch q {
	case QueueOpEnqueue:
		return "ENQUEUE"
	case QueueOpDrop:
		return "DROP"
	case QueueOpFlush:
		return "FLUSH"
	case QueueOpRequeue:
		return "REQUEUE"
	case QueueOpClear:
		return "CLEAR"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
