package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/VadymVolin/unde-library/pkg/config"
	"github.com/VadymVolin/unde-library/pkg/connection"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/wire"
)

// agent bundles a manager with the resources built for it.
type agent struct {
	manager *connection.Manager
	logger  *slog.Logger
	closers []io.Closer
}

// newAgent builds a manager from cfg. Operational logs go to logOut.
// Inbound commands are passed to onCommand when it is not nil.
func newAgent(cfg *config.AgentConfig, logOut io.Writer, onCommand func(*wire.Command)) (*agent, error) {
	logger, err := cfg.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithResolver(cfg.Resolver()),
	}
	if onCommand != nil {
		opts = append(opts, connection.WithCommandHandler(onCommand))
	}

	a := &agent{logger: logger}
	fl, err := cfg.NewProtocolLogger()
	if err != nil {
		return nil, err
	}
	var sinks []log.Logger
	if fl != nil {
		a.closers = append(a.closers, fl)
		sinks = append(sinks, fl)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	if pl := log.Tee(sinks...); pl != nil {
		opts = append(opts, connection.WithProtocolLogger(pl))
	}

	a.manager = connection.New(cfg.ManagerConfig(), opts...)
	a.manager.OnStateChange(func(oldState, newState connection.State) {
		logger.Info("connection state", "from", oldState, "to", newState)
	})
	return a, nil
}

func (a *agent) start() {
	a.manager.Initialize()
}

// close destroys the manager and releases the protocol log.
func (a *agent) close() {
	a.manager.Destroy()
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// drain waits until the offline queue is empty and the connection is up,
// or until ctx is done. It returns the number of messages still queued.
func (a *agent) drain(ctx context.Context) int {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		st := a.manager.Stats()
		if st.Queued == 0 && st.State == connection.StateConnected {
			return 0
		}
		if a.manager.Halted() {
			return st.Queued
		}
		select {
		case <-ctx.Done():
			return a.manager.Stats().Queued
		case <-ticker.C:
		}
	}
}

func formatStats(st connection.Stats) string {
	s := fmt.Sprintf("state=%s attempts=%d connects=%d sent=%d queued=%d dropped=%d discarded=%d",
		st.State, st.Attempts, st.Connects, st.Sent, st.Queued, st.Dropped, st.Discarded)
	if st.Session != nil {
		s += fmt.Sprintf(" conn=%s remote=%s frames_in=%d frames_out=%d",
			st.ConnectionID, st.Session.RemoteAddr, st.Session.FramesIn, st.Session.FramesOut)
	}
	return s
}
