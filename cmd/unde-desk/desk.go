package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/VadymVolin/unde-library/pkg/transport"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

// printer writes one line per received message. It answers the agent's
// handshake ping on the session it came from.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	now     func() time.Time
}

func newPrinter(out io.Writer, verbose bool) *printer {
	return &printer{out: out, verbose: verbose, now: time.Now}
}

// handler returns the message handler for sess.
func (p *printer) handler(sess *transport.Session) transport.MessageHandler {
	return transport.MessageHandlerFunc(func(msg wire.Message) {
		if r, ok := msg.(*wire.Result); ok && r.Data == transport.HandshakePing {
			if err := sess.Write(&wire.Result{Data: transport.HandshakePong}); err != nil {
				p.printf(sess, "handshake reply failed: %v", err)
				return
			}
			p.printf(sess, "handshake")
			return
		}
		if _, ok := msg.(*wire.KeepAlive); ok && !p.verbose {
			return
		}
		p.printf(sess, "%s", describe(msg))
	})
}

func (p *printer) printf(sess *transport.Session, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := sess.ID()
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(p.out, "%s [%s] %s\n", p.now().Format("15:04:05.000"), id, fmt.Sprintf(format, args...))
}

// describe renders a message on one line.
func describe(msg wire.Message) string {
	switch m := msg.(type) {
	case *wire.Network:
		return fmt.Sprintf("network  %s (%s)", m.Data.Summary(), m.Data.Duration())
	case *wire.Result:
		return fmt.Sprintf("result   %q", m.Data)
	case *wire.KeepAlive:
		return fmt.Sprintf("keepalive %d", m.Timestamp)
	case *wire.Command:
		return fmt.Sprintf("command  %s", m.Data)
	case *wire.Database:
		return fmt.Sprintf("database %s", m.Data)
	case *wire.Telemetry:
		return fmt.Sprintf("telemetry %s", m.Data)
	case *wire.Logcat:
		return fmt.Sprintf("logcat   %s", m.Data)
	default:
		return msg.Kind().String()
	}
}
