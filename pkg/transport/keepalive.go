package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// Keep-alive constants.
const (
	// DefaultKeepAliveInterval is the default interval between heartbeats.
	DefaultKeepAliveInterval = 5 * time.Second

	// DefaultKeepAliveTimeout is how long the peer may stay silent before
	// the connection is considered dead.
	DefaultKeepAliveTimeout = 15 * time.Second
)

// ErrKeepAliveTimeout indicates no heartbeat arrived within the timeout.
var ErrKeepAliveTimeout = errors.New("keep-alive timeout")

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// Interval is the time between liveness checks and outgoing heartbeats.
	Interval time.Duration

	// Timeout is the maximum silence tolerated from the peer.
	Timeout time.Duration

	// ResetOnAnyMessage counts every inbound message as proof of life,
	// not only heartbeats.
	ResetOnAnyMessage bool
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Interval: DefaultKeepAliveInterval,
		Timeout:  DefaultKeepAliveTimeout,
	}
}

// DetectionDelay returns the longest time a dead peer can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.Timeout + c.Interval
}

// SendFunc delivers an outgoing message.
type SendFunc func(msg wire.Message)

// KeepAlive monitors connection liveness. Each tick it first checks how
// long ago the last heartbeat arrived, then hands its own heartbeat to the
// send function on a separate goroutine. A send that blocks, for instance
// on a peer that stopped reading, never delays the expiry check; further
// heartbeats are skipped until it returns.
type KeepAlive struct {
	config    KeepAliveConfig
	send      SendFunc
	onTimeout func()

	// inflight is set while a heartbeat is inside send.
	inflight atomic.Bool

	mu           sync.Mutex
	running      bool
	lastReceived time.Time
	lastSent     time.Time
	sent         uint64
	skipped      uint64
	received     uint64
}

// NewKeepAlive creates a new keep-alive monitor. Zero config fields take
// their defaults. onTimeout may be nil.
func NewKeepAlive(config KeepAliveConfig, send SendFunc, onTimeout func()) *KeepAlive {
	if config.Interval <= 0 {
		config.Interval = DefaultKeepAliveInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultKeepAliveTimeout
	}

	return &KeepAlive{
		config:    config,
		send:      send,
		onTimeout: onTimeout,
	}
}

// Config returns the effective configuration.
func (ka *KeepAlive) Config() KeepAliveConfig {
	return ka.config
}

// Run drives the monitor until ctx ends or the peer times out. It returns
// nil on cancellation and ErrKeepAliveTimeout on timeout. The silence
// window starts when Run is called.
func (ka *KeepAlive) Run(ctx context.Context) error {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return errors.New("keep-alive already running")
	}
	ka.running = true
	ka.lastReceived = time.Now()
	ka.mu.Unlock()

	defer func() {
		ka.mu.Lock()
		ka.running = false
		ka.mu.Unlock()
	}()

	ticker := time.NewTicker(ka.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if ka.expired(now) {
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return ErrKeepAliveTimeout
			}
			ka.heartbeat(now)
		}
	}
}

// Received records inbound proof of life.
func (ka *KeepAlive) Received() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastReceived = time.Now()
	ka.received++
}

// IsRunning returns true if monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastSent:     ka.lastSent,
		LastReceived: ka.lastReceived,
		Sent:         ka.sent,
		Skipped:      ka.skipped,
		Received:     ka.received,
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastSent     time.Time
	LastReceived time.Time
	Sent         uint64
	Received     uint64

	// Skipped counts ticks whose heartbeat was not sent because the
	// previous one was still being written.
	Skipped uint64
}

func (ka *KeepAlive) expired(now time.Time) bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return now.Sub(ka.lastReceived) > ka.config.Timeout
}

func (ka *KeepAlive) heartbeat(now time.Time) {
	if !ka.inflight.CompareAndSwap(false, true) {
		ka.mu.Lock()
		ka.skipped++
		ka.mu.Unlock()
		return
	}

	ka.mu.Lock()
	ka.lastSent = now
	ka.sent++
	ka.mu.Unlock()

	if ka.send == nil {
		ka.inflight.Store(false)
		return
	}
	go func() {
		defer ka.inflight.Store(false)
		ka.send(wire.NewKeepAlive(now))
	}()
}
