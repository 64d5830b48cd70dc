package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all values are usable. Defaults must already be
// applied.
func (c *AgentConfig) Validate() error {
	switch c.Server.Discovery {
	case DiscoveryStatic, DiscoveryEnvironment, DiscoveryMDNS:
	default:
		return fmt.Errorf("server.discovery must be one of static, environment, mdns, got %q", c.Server.Discovery)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}

	if c.Connection.ConnectTimeout < 0 {
		return errors.New("connection.connect_timeout must be >= 0")
	}
	if c.Connection.WriteTimeout < 0 {
		return errors.New("connection.write_timeout must be >= 0")
	}

	if c.Reconnect.BaseDelay < 0 {
		return errors.New("reconnect.base_delay must be >= 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be below base_delay (%s)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxAttempts != nil && *c.Reconnect.MaxAttempts < -1 {
		return fmt.Errorf("reconnect.max_attempts must be >= -1, got %d", *c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("reconnect.jitter must be between 0 and 1, got %g", c.Reconnect.Jitter)
	}

	if !c.KeepAlive.Disabled && c.KeepAlive.Timeout < c.KeepAlive.Interval {
		return fmt.Errorf("keepalive.timeout (%s) cannot be below interval (%s)", c.KeepAlive.Timeout, c.KeepAlive.Interval)
	}

	if c.Capture.MaxBodySize < 0 {
		return errors.New("capture.max_body_size must be >= 0")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
