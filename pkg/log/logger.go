package log

// Logger receives protocol events from sessions and the connection
// manager. Log is called on the I/O path and must not block; it may be
// called from several goroutines at once.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards every event.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MultiLogger fans each event out to a fixed set of loggers, in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a MultiLogger over loggers. Nil entries are
// skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log forwards event to every logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of loggers events are forwarded to.
func (m *MultiLogger) Len() int {
	return len(m.loggers)
}

// Tee combines loggers into one. It returns nil when no logger is left
// after dropping nil entries, and the logger itself when only one is.
func Tee(loggers ...Logger) Logger {
	m := NewMultiLogger(loggers...)
	switch m.Len() {
	case 0:
		return nil
	case 1:
		return m.loggers[0]
	default:
		return m
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
