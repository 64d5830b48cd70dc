package config

import (
	"github.com/VadymVolin/unde-library/pkg/capture"
	"github.com/VadymVolin/unde-library/pkg/connection"
	"github.com/VadymVolin/unde-library/pkg/discovery"
	"github.com/VadymVolin/unde-library/pkg/queue"
	"github.com/VadymVolin/unde-library/pkg/transport"
)

// Discovery modes.
const (
	DiscoveryStatic      = "static"
	DiscoveryEnvironment = "environment"
	DiscoveryMDNS        = "mdns"
)

// Default values for optional configuration fields.
const (
	DefaultHost              = discovery.DeviceHost
	DefaultEmulatorHost      = discovery.EmulatorHost
	DefaultPort              = discovery.DefaultPort
	DefaultDiscovery         = DiscoveryStatic
	DefaultBrowseTimeout     = discovery.BrowseTimeout
	DefaultConnectTimeout    = transport.DefaultConnectTimeout
	DefaultHandshakeTimeout  = transport.DefaultHandshakeTimeout
	DefaultMaxFrameSize      = transport.DefaultMaxFrameSize
	DefaultBaseDelay         = connection.DefaultBaseDelay
	DefaultMaxDelay          = connection.DefaultMaxDelay
	DefaultMaxAttempts       = connection.RetryForever
	DefaultKeepAliveInterval = transport.DefaultKeepAliveInterval
	DefaultKeepAliveTimeout  = transport.DefaultKeepAliveTimeout
	DefaultQueueMaxSize      = queue.DefaultMaxSize
	DefaultMaxBodySize       = capture.DefaultMaxBodySize
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Default returns a configuration with every default applied.
func Default() *AgentConfig {
	cfg := &AgentConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *AgentConfig) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.EmulatorHost == "" {
		c.Server.EmulatorHost = DefaultEmulatorHost
	}
	if c.Server.Discovery == "" {
		c.Server.Discovery = DefaultDiscovery
	}
	if c.Server.BrowseTimeout == 0 {
		c.Server.BrowseTimeout = DefaultBrowseTimeout
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.MaxFrameSize == 0 {
		c.Connection.MaxFrameSize = DefaultMaxFrameSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if c.Reconnect.MaxAttempts == nil {
		n := DefaultMaxAttempts
		c.Reconnect.MaxAttempts = &n
	}

	// Keep-alive defaults
	if c.KeepAlive.Interval == 0 {
		c.KeepAlive.Interval = DefaultKeepAliveInterval
	}
	if c.KeepAlive.Timeout == 0 {
		c.KeepAlive.Timeout = DefaultKeepAliveTimeout
	}

	// A write may stall no longer than the peer may stay silent.
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = c.KeepAlive.Timeout
	}

	if c.Queue.MaxSize == 0 {
		c.Queue.MaxSize = DefaultQueueMaxSize
	}
	if c.Capture.MaxBodySize == 0 {
		c.Capture.MaxBodySize = DefaultMaxBodySize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
