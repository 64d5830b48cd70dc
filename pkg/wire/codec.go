package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Codec errors.
var (
	// ErrUnknownKind indicates a discriminator value outside the known set.
	ErrUnknownKind = errors.New("unknown message kind")

	// ErrMalformed indicates a document that is not a valid message.
	ErrMalformed = errors.New("malformed message")

	// ErrNilMessage indicates Marshal was called with a nil message.
	ErrNilMessage = errors.New("nil message")
)

// envelope is the JSON shape shared by all variants.
type envelope struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp *int64          `json:"timestamp,omitempty"`
}

// Marshal encodes msg as a JSON object with its discriminator.
func Marshal(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	env := envelope{Type: msg.Kind()}

	var err error
	switch m := msg.(type) {
	case *Result:
		env.Data, err = json.Marshal(m.Data)
	case *Command:
		env.Data, err = objectData(m.Data)
	case *Network:
		env.Data, err = json.Marshal(m.Data)
	case *Database:
		env.Data, err = objectData(m.Data)
	case *Telemetry:
		env.Data, err = objectData(m.Data)
	case *Logcat:
		env.Data, err = objectData(m.Data)
	case *KeepAlive:
		ts := m.Timestamp
		env.Timestamp = &ts
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Type, err)
	}

	return json.Marshal(env)
}

// Unmarshal decodes a JSON document into the variant its discriminator names.
// Unknown fields are ignored.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case KindResult:
		var s string
		if err := decodeData(env, &s); err != nil {
			return nil, err
		}
		return &Result{Data: s}, nil

	case KindCommand, KindDatabase, KindTelemetry, KindLogcat:
		obj, err := decodeObject(env)
		if err != nil {
			return nil, err
		}
		switch env.Type {
		case KindCommand:
			return &Command{Data: obj}, nil
		case KindDatabase:
			return &Database{Data: obj}, nil
		case KindTelemetry:
			return &Telemetry{Data: obj}, nil
		default:
			return &Logcat{Data: obj}, nil
		}

	case KindNetwork:
		var rr RequestResponse
		if err := decodeData(env, &rr); err != nil {
			return nil, err
		}
		return &Network{Data: rr}, nil

	case KindKeepAlive:
		ka := &KeepAlive{}
		if env.Timestamp != nil {
			ka.Timestamp = *env.Timestamp
		}
		return ka, nil

	case "":
		return nil, fmt.Errorf("%w: missing %q field", ErrMalformed, TypeKey)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(env.Type))
	}
}

// NewObject marshals v and checks that the result is a JSON object,
// for building Command, Database, Telemetry and Logcat payloads.
func NewObject(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !isObject(data) {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}
	return data, nil
}

// objectData validates an opaque object payload for encoding.
// An empty payload encodes as {}.
func objectData(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !isObject(raw) {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}
	return raw, nil
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s message without data", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

func decodeObject(env envelope) (json.RawMessage, error) {
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %s message without data", ErrMalformed, env.Type)
	}
	if !isObject(env.Data) {
		return nil, fmt.Errorf("%w: %s data is not a JSON object", ErrMalformed, env.Type)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, env.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}
	return buf.Bytes(), nil
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
