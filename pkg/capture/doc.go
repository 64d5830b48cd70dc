// Package capture turns HTTP traffic into Network messages.
//
// Wrap an http.Client's transport with Transport and hand it the
// connection manager as Sender:
//
//	client := capture.NewClient(manager, capture.Options{})
//	resp, err := client.Get("https://api.example.com/items")
//
// Each exchange is normalized (headers as a multimap, bodies rendered as
// text) and relayed once the response body is consumed. Bodies above
// Options.MaxBodySize are truncated, gzip bodies are inflated and binary
// bodies are replaced with a placeholder naming their size and type.
package capture
