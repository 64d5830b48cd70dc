package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults.
const (
	// DefaultBaseDelay is the delay before the first reconnect attempt.
	DefaultBaseDelay = 2 * time.Second

	// DefaultMaxDelay caps the reconnect delay.
	DefaultMaxDelay = 60 * time.Second

	// BackoffMultiplier is the factor by which the delay grows per attempt.
	BackoffMultiplier = 2.0

	// RetryForever disables the attempt limit.
	RetryForever = -1
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	// Base is the first delay (default 2s).
	Base time.Duration

	// Max caps the delay (default 60s).
	Max time.Duration

	// MaxAttempts limits scheduled attempts between resets.
	// RetryForever (or any negative value) means no limit.
	MaxAttempts int

	// Jitter adds up to Jitter*delay of random extra wait (default 0).
	Jitter float64
}

// DefaultBackoffConfig returns the default reconnect policy.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:        DefaultBaseDelay,
		Max:         DefaultMaxDelay,
		MaxAttempts: RetryForever,
	}
}

// Backoff calculates exponential reconnect delays:
// delay(n) = min(base * 2^(n-1), max) for attempt n >= 1.
type Backoff struct {
	mu sync.Mutex

	// Current backoff delay (before jitter)
	current time.Duration

	// Configuration
	base        time.Duration
	max         time.Duration
	maxAttempts int
	jitter      float64

	// Attempt counter
	attempts int

	// Random source for jitter
	rng *rand.Rand
}

// NewBackoff creates a backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
// Zero durations take their defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Base <= 0 {
		cfg.Base = DefaultBaseDelay
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxDelay
	}
	if cfg.Max < cfg.Base {
		cfg.Max = cfg.Base
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = RetryForever
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:     cfg.Base,
		base:        cfg.Base,
		max:         cfg.Max,
		maxAttempts: cfg.MaxAttempts,
		jitter:      cfg.Jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next counts an attempt and returns its delay. It returns false, without
// counting, once MaxAttempts attempts have been scheduled since the last
// Reset.
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exhaustedLocked() {
		return 0, false
	}

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * BackoffMultiplier)
	if next > b.max || next <= 0 {
		next = b.max
	}
	b.current = next

	return delay, true
}

// Peek returns the delay the next attempt would get, without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset resets the backoff to initial values.
// Call this after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.base
	b.attempts = 0
}

// Attempts returns the number of attempts scheduled since last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Exhausted reports whether the attempt limit has been reached.
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhaustedLocked()
}

func (b *Backoff) exhaustedLocked() bool {
	return b.maxAttempts >= 0 && b.attempts >= b.maxAttempts
}

// addJitter adds random jitter to a delay. Must be called with lock held.
func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

// BackoffSequence returns the default delays for attempts 1 through 7.
func BackoffSequence() []time.Duration {
	return []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // max
		60 * time.Second,
	}
}
