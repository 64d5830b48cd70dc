package config

import "time"

// AgentConfig is the root configuration of an agent process.
type AgentConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	KeepAlive  KeepAliveConfig  `yaml:"keepalive"`
	Queue      QueueConfig      `yaml:"queue"`
	Capture    CaptureConfig    `yaml:"capture"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig locates the desktop tool.
type ServerConfig struct {
	// Host is dialed in static mode, and on a device in environment mode.
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	EmulatorHost string `yaml:"emulator_host"`

	// Discovery is one of "static", "environment" or "mdns".
	Discovery string `yaml:"discovery"`

	// Emulator forces the emulator host in environment mode. When unset
	// the UNDE_EMULATOR variable decides.
	Emulator *bool `yaml:"emulator"`

	// Instance restricts mDNS discovery to one advertised instance name.
	Instance string `yaml:"instance"`

	// BrowseTimeout bounds one mDNS lookup.
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
}

// ConnectionConfig holds per-connection settings.
type ConnectionConfig struct {
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"` // default: keepalive.timeout
	Handshake        bool          `yaml:"handshake"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Compression      bool          `yaml:"compression"`
	MaxFrameSize     uint64        `yaml:"max_frame_size"`
}

// ReconnectConfig holds the backoff policy.
type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`

	// MaxAttempts limits consecutive attempts; -1 retries forever.
	MaxAttempts *int    `yaml:"max_attempts"`
	Jitter      float64 `yaml:"jitter"`
}

// KeepAliveConfig holds liveness settings.
type KeepAliveConfig struct {
	Disabled          bool          `yaml:"disabled"`
	Interval          time.Duration `yaml:"interval"`
	Timeout           time.Duration `yaml:"timeout"`
	ResetOnAnyMessage bool          `yaml:"reset_on_any_message"`
}

// QueueConfig bounds the offline queue.
type QueueConfig struct {
	MaxSize int `yaml:"max_size"` // negative means unbounded
}

// CaptureConfig controls HTTP interception.
type CaptureConfig struct {
	MaxBodySize   int      `yaml:"max_body_size"`
	RedactHeaders []string `yaml:"redact_headers"`
}

// LoggingConfig controls operational and protocol logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// ProtocolLog is the path of a .ulog capture file. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`
}
