// Package transport implements the socket side of the relay: framing,
// payload encoding, liveness, and the per-connection I/O loop.
//
// # Protocol Stack
//
//	┌────────────────────────────────────┐
//	│   JSON message (pkg/wire)          │
//	├────────────────────────────────────┤
//	│   optional gzip of the whole doc   │
//	├────────────────────────────────────┤
//	│   Length-Prefix Framing (8B, BE)   │
//	├────────────────────────────────────┤
//	│           TCP                      │
//	└────────────────────────────────────┘
//
// Each frame is a uint64 big-endian payload length followed by the
// payload. A zero length or a length above the maximum frame size (50 MiB
// by default) means the stream has lost sync; the read loop stops and the
// connection must be re-established. A payload that frames correctly but
// fails to decode is dropped and the loop continues.
//
// # Sessions
//
// A Session owns one established socket. Run starts the read loop and the
// keep-alive monitor together and returns the first failure. Cancelling
// the context stops both without closing the socket; closing is left to
// the owner. Writes are serialized, so a frame is never interleaved with
// another.
//
// # Keep-Alive
//
// Every interval (5s) the monitor checks when the peer's last heartbeat
// arrived. If that was longer ago than the timeout (15s) the session ends
// with ErrKeepAliveTimeout; otherwise a heartbeat is sent.
//
// # Handshake
//
// When enabled, the agent opens with Result "Ping" and expects Result
// "Pong" before treating the connection as established.
package transport
