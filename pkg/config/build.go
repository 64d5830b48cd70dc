package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/VadymVolin/unde-library/pkg/capture"
	"github.com/VadymVolin/unde-library/pkg/connection"
	"github.com/VadymVolin/unde-library/pkg/discovery"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/transport"
)

// ManagerConfig maps the configuration onto a connection manager config.
func (c *AgentConfig) ManagerConfig() connection.Config {
	maxAttempts := DefaultMaxAttempts
	if c.Reconnect.MaxAttempts != nil {
		maxAttempts = *c.Reconnect.MaxAttempts
	}
	return connection.Config{
		Endpoint:         discovery.Endpoint{Host: c.Server.Host, Port: c.Server.Port},
		ConnectTimeout:   c.Connection.ConnectTimeout,
		WriteTimeout:     c.Connection.WriteTimeout,
		Handshake:        c.Connection.Handshake,
		HandshakeTimeout: c.Connection.HandshakeTimeout,
		Compression:      c.Connection.Compression,
		MaxFrameSize:     c.Connection.MaxFrameSize,
		Backoff: connection.BackoffConfig{
			Base:        c.Reconnect.BaseDelay,
			Max:         c.Reconnect.MaxDelay,
			MaxAttempts: maxAttempts,
			Jitter:      c.Reconnect.Jitter,
		},
		KeepAlive: transport.KeepAliveConfig{
			Interval:          c.KeepAlive.Interval,
			Timeout:           c.KeepAlive.Timeout,
			ResetOnAnyMessage: c.KeepAlive.ResetOnAnyMessage,
		},
		DisableKeepAlive: c.KeepAlive.Disabled,
		QueueMaxSize:     c.Queue.MaxSize,
	}
}

// Resolver builds the endpoint resolver for the configured discovery mode.
// The mDNS resolver falls back to the static endpoint when nothing answers.
func (c *AgentConfig) Resolver() discovery.Resolver {
	static := discovery.NewStaticResolver(c.Server.Host, c.Server.Port)

	switch c.Server.Discovery {
	case DiscoveryEnvironment:
		isEmulator := discovery.EmulatorFromEnv
		if c.Server.Emulator != nil {
			forced := *c.Server.Emulator
			isEmulator = func() bool { return forced }
		}
		return &discovery.EnvironmentResolver{
			Port:         c.Server.Port,
			DeviceHost:   c.Server.Host,
			EmulatorHost: c.Server.EmulatorHost,
			IsEmulator:   isEmulator,
		}
	case DiscoveryMDNS:
		mdns := discovery.NewMDNSResolver(discovery.BrowserConfig{
			Timeout:  c.Server.BrowseTimeout,
			Instance: c.Server.Instance,
		})
		return discovery.FallbackResolver{mdns, static}
	default:
		return static
	}
}

// CaptureOptions returns the HTTP capture options.
func (c *AgentConfig) CaptureOptions() capture.Options {
	return capture.Options{
		MaxBodySize:   c.Capture.MaxBodySize,
		RedactHeaders: c.Capture.RedactHeaders,
	}
}

// NewLogger builds the operational logger writing to w.
func (c *AgentConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// NewProtocolLogger opens the protocol capture file, if one is configured.
// It returns nil when protocol logging is off.
func (c *AgentConfig) NewProtocolLogger() (*log.FileLogger, error) {
	if c.Logging.ProtocolLog == "" {
		return nil, nil
	}
	fl, err := log.NewFileLogger(c.Logging.ProtocolLog)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}
	return fl, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", s, err)
	}
	return level, nil
}
