// Package wire defines the JSON message model exchanged between the agent
// and the desktop inspection tool.
//
// Every message is a JSON object carrying a "type" discriminator whose value
// selects the variant:
//
//	result     {"type":"result","data":"..."}
//	command    {"type":"command","data":{...}}
//	network    {"type":"network","data":{"request":{...},"response":{...}}}
//	database   {"type":"database","data":{...}}
//	telemetry  {"type":"telemetry","data":{...}}
//	logcat     {"type":"logcat","data":{...}}
//	keepalive  {"type":"keepalive","timestamp":1700000000000}
//
// The discriminator key and the token values are part of the protocol and
// must match the desktop tool exactly.
//
// # Message Types
//
// Message is a closed set: only the variant types declared in this package
// implement it. Use a type switch to inspect a decoded message:
//
//	switch m := msg.(type) {
//	case *wire.Network:
//	    fmt.Println(m.Data.Request.URL)
//	case *wire.KeepAlive:
//	    fmt.Println(m.Timestamp)
//	}
//
// Framing and compression are handled by the transport package; this
// package only deals with the JSON document of a single message.
package wire
