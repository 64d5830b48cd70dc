package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

func TestKeepAliveConfigDefaults(t *testing.T) {
	config := DefaultKeepAliveConfig()
	if config.Interval != 5*time.Second || config.Timeout != 15*time.Second {
		t.Errorf("defaults = %+v", config)
	}
	if config.ResetOnAnyMessage {
		t.Error("ResetOnAnyMessage should default to false")
	}
	if got := config.DetectionDelay(); got != 20*time.Second {
		t.Errorf("DetectionDelay = %v, want 20s", got)
	}

	ka := NewKeepAlive(KeepAliveConfig{}, nil, nil)
	if ka.Config().Interval != DefaultKeepAliveInterval || ka.Config().Timeout != DefaultKeepAliveTimeout {
		t.Errorf("zero config not defaulted: %+v", ka.Config())
	}
}

func TestKeepAliveSendsHeartbeats(t *testing.T) {
	var mu sync.Mutex
	var sent []wire.Message

	ka := NewKeepAlive(KeepAliveConfig{Interval: 20 * time.Millisecond, Timeout: time.Second},
		func(msg wire.Message) {
			mu.Lock()
			sent = append(sent, msg)
			mu.Unlock()
		}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	if err := ka.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on cancellation", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) < 3 {
		t.Fatalf("sent %d heartbeats, want at least 3", len(sent))
	}
	for _, m := range sent {
		ka, ok := m.(*wire.KeepAlive)
		if !ok {
			t.Fatalf("sent %T, want *wire.KeepAlive", m)
		}
		if ka.Timestamp == 0 {
			t.Error("heartbeat without timestamp")
		}
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	var timedOut atomic.Bool
	ka := NewKeepAlive(KeepAliveConfig{Interval: 10 * time.Millisecond, Timeout: 40 * time.Millisecond},
		func(wire.Message) {}, func() { timedOut.Store(true) })

	start := time.Now()
	err := ka.Run(context.Background())

	if !errors.Is(err, ErrKeepAliveTimeout) {
		t.Fatalf("Run returned %v, want ErrKeepAliveTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("timed out after %v, before the timeout elapsed", elapsed)
	}
	if !timedOut.Load() {
		t.Error("onTimeout not called")
	}
	if ka.IsRunning() {
		t.Error("still running after Run returned")
	}
}

func TestKeepAliveReceivedPreventsTimeout(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{Interval: 10 * time.Millisecond, Timeout: 40 * time.Millisecond},
		func(wire.Message) {}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ka.Received()
			}
		}
	}()

	if err := ka.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if st := ka.Stats(); st.Received == 0 || st.Sent == 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestKeepAliveRunTwice(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{Interval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ka.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !ka.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := ka.Run(ctx); err == nil {
		t.Error("second Run should fail while the first is active")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("first Run returned %v", err)
	}
}

func TestKeepAliveTimeoutWithBlockedSend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	ka := NewKeepAlive(KeepAliveConfig{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond},
		func(wire.Message) {
			calls.Add(1)
			<-release
		}, nil)

	done := make(chan error, 1)
	go func() { done <- ka.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrKeepAliveTimeout) {
			t.Fatalf("Run returned %v, want ErrKeepAliveTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a blocked heartbeat send stalled the timeout check")
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("send called %d times, want 1 while the first is blocked", n)
	}
	if st := ka.Stats(); st.Skipped == 0 {
		t.Errorf("stats = %+v, want skipped heartbeats", st)
	}
}
