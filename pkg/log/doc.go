// Package log provides structured protocol capture for the relay agent.
//
// This package defines the Logger interface and Event types for capturing
// events at multiple layers (transport, wire, connection). It is separate
// from operational logging (slog): protocol capture provides a complete
// machine-readable trace of what went over the socket and why the
// connection changed state.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts = append(opts, connection.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For later analysis: write to a binary file
//	fl, _ := log.NewFileLogger("/tmp/agent.ulog")
//
//	// Both. Tee drops nil loggers.
//	pl := log.Tee(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frames (FrameEvent)
//   - Wire: decoded messages with kind and size (MessageEvent)
//   - Connection: state changes, reconnect scheduling (StateChangeEvent)
//     and outbound queue activity (QueueEvent)
//
// Handshake messages and errors have dedicated event types.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with a .ulog extension.
// The unde-log CLI provides viewing, filtering, and export.
package log
