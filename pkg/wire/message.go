package wire

import (
	"encoding/json"
	"time"
)

// TypeKey is the JSON key holding the message discriminator.
const TypeKey = "type"

// Kind is the discriminator token identifying a message variant.
type Kind string

// Discriminator tokens.
const (
	KindResult    Kind = "result"
	KindCommand   Kind = "command"
	KindNetwork   Kind = "network"
	KindDatabase  Kind = "database"
	KindTelemetry Kind = "telemetry"
	KindLogcat    Kind = "logcat"
	KindKeepAlive Kind = "keepalive"
)

// Kinds lists every known discriminator token.
var Kinds = []Kind{
	KindResult,
	KindCommand,
	KindNetwork,
	KindDatabase,
	KindTelemetry,
	KindLogcat,
	KindKeepAlive,
}

// String returns the token.
func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether k is a known token.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Message is a single unit exchanged with the desktop tool.
// The set of implementations is closed to this package.
type Message interface {
	// Kind returns the discriminator token of the variant.
	Kind() Kind

	sealed()
}

// Result carries a plain string, used for handshakes and acknowledgements.
type Result struct {
	Data string
}

// Command carries an opaque command object, typically sent by the desktop tool.
type Command struct {
	Data json.RawMessage
}

// Network carries one captured HTTP exchange.
type Network struct {
	Data RequestResponse
}

// Database carries an opaque database inspection object.
type Database struct {
	Data json.RawMessage
}

// Telemetry carries an opaque device telemetry object.
type Telemetry struct {
	Data json.RawMessage
}

// Logcat carries an opaque log entry object.
type Logcat struct {
	Data json.RawMessage
}

// KeepAlive is the heartbeat message. Timestamp is in Unix milliseconds.
type KeepAlive struct {
	Timestamp int64
}

// NewKeepAlive creates a heartbeat stamped with t.
func NewKeepAlive(t time.Time) *KeepAlive {
	return &KeepAlive{Timestamp: t.UnixMilli()}
}

func (*Result) Kind() Kind { return KindResult }
func (*Command) Kind() Kind { return KindCommand }
func (*Network) Kind() Kind { return KindNetwork }
func (*Database) Kind() Kind { return KindDatabase }
func (*Telemetry) Kind() Kind { return KindTelemetry }
func (*Logcat) Kind() Kind { return KindLogcat }
func (*KeepAlive) Kind() Kind { return KindKeepAlive }

func (*Result) sealed() {}
func (*Command) sealed() {}
func (*Network) sealed() {}
func (*Database) sealed() {}
func (*Telemetry) sealed() {}
func (*Logcat) sealed() {}
func (*KeepAlive) sealed() {}

// Compile-time interface satisfaction checks.
var (
	_ Message = (*Result)(nil)
	_ Message = (*Command)(nil)
	_ Message = (*Network)(nil)
	_ Message = (*Database)(nil)
	_ Message = (*Telemetry)(nil)
	_ Message = (*Logcat)(nil)
	_ Message = (*KeepAlive)(nil)
)
