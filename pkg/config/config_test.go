package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VadymVolin/unde-library/pkg/connection"
	"github.com/VadymVolin/unde-library/pkg/discovery"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempFile(t, `
server:
  host: 192.168.1.20
  port: 9000
  discovery: static
connection:
  connect_timeout: 3s
  handshake: true
  compression: true
reconnect:
  base_delay: 500ms
  max_delay: 10s
  max_attempts: 5
  jitter: 0.2
keepalive:
  interval: 2s
  timeout: 6s
queue:
  max_size: 50
capture:
  max_body_size: 4096
  redact_headers: [Authorization, Cookie]
logging:
  level: debug
  format: json
`)

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Connection.ConnectTimeout)
	assert.True(t, cfg.Connection.Handshake)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.BaseDelay)
	require.NotNil(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 5, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, []string{"Authorization", "Cookie"}, cfg.Capture.RedactHeaders)

	// Unset fields still get defaults.
	assert.Equal(t, DefaultEmulatorHost, cfg.Server.EmulatorHost)
	assert.Equal(t, DefaultHandshakeTimeout, cfg.Connection.HandshakeTimeout)
	assert.Equal(t, uint64(DefaultMaxFrameSize), cfg.Connection.MaxFrameSize)
	assert.Equal(t, 6*time.Second, cfg.Connection.WriteTimeout, "write timeout follows keepalive.timeout")
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("UNDE_TEST_HOST", "10.1.2.3")
	t.Setenv("UNDE_TEST_LOG", "/tmp/agent.ulog")

	path := writeTempFile(t, `
server:
  host: ${UNDE_TEST_HOST}
logging:
  protocol_log: ${UNDE_TEST_LOG}
`)

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", cfg.Server.Host)
	assert.Equal(t, "/tmp/agent.ulog", cfg.Logging.ProtocolLog)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, DiscoveryStatic, cfg.Server.Discovery)
	assert.Equal(t, 15*time.Second, cfg.Connection.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Reconnect.MaxDelay)
	require.NotNil(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, -1, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.KeepAlive.Interval)
	assert.Equal(t, 15*time.Second, cfg.KeepAlive.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Connection.WriteTimeout)
	assert.Equal(t, 1000, cfg.Queue.MaxSize)
	assert.Equal(t, 256*1024, cfg.Capture.MaxBodySize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestExplicitZeroAttemptsKept(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, "reconnect:\n  max_attempts: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 0, *cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 0, cfg.ManagerConfig().Backoff.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempFile(t, "server: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config yaml")
}

func TestLoadAndValidateEmptyPath(t *testing.T) {
	cfg, err := LoadAndValidate("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentConfig)
		wantErr string
	}{
		{name: "Defaults", mutate: func(*AgentConfig) {}},
		{name: "UnknownDiscovery", mutate: func(c *AgentConfig) { c.Server.Discovery = "dns" }, wantErr: "server.discovery"},
		{name: "PortTooHigh", mutate: func(c *AgentConfig) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "NegativePort", mutate: func(c *AgentConfig) { c.Server.Port = -1 }, wantErr: "server.port"},
		{name: "NegativeWriteTimeout", mutate: func(c *AgentConfig) { c.Connection.WriteTimeout = -time.Second }, wantErr: "connection.write_timeout"},
		{name: "MaxBelowBase", mutate: func(c *AgentConfig) { c.Reconnect.MaxDelay = time.Second; c.Reconnect.BaseDelay = 2 * time.Second }, wantErr: "reconnect.max_delay"},
		{name: "AttemptsBelowForever", mutate: func(c *AgentConfig) { n := -2; c.Reconnect.MaxAttempts = &n }, wantErr: "reconnect.max_attempts"},
		{name: "JitterTooLarge", mutate: func(c *AgentConfig) { c.Reconnect.Jitter = 1.5 }, wantErr: "reconnect.jitter"},
		{name: "KeepAliveTimeoutBelowInterval", mutate: func(c *AgentConfig) { c.KeepAlive.Timeout = time.Second }, wantErr: "keepalive.timeout"},
		{name: "KeepAliveDisabledIgnoresTimes", mutate: func(c *AgentConfig) { c.KeepAlive.Disabled = true; c.KeepAlive.Timeout = time.Second }},
		{name: "NegativeBody", mutate: func(c *AgentConfig) { c.Capture.MaxBodySize = -1 }, wantErr: "capture.max_body_size"},
		{name: "BadLevel", mutate: func(c *AgentConfig) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "BadFormat", mutate: func(c *AgentConfig) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManagerConfig(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "10.0.0.5"
	cfg.Server.Port = 9100
	cfg.Connection.Handshake = true
	cfg.Reconnect.Jitter = 0.1
	cfg.KeepAlive.ResetOnAnyMessage = true
	cfg.Queue.MaxSize = -1

	mc := cfg.ManagerConfig()
	assert.Equal(t, discovery.Endpoint{Host: "10.0.0.5", Port: 9100}, mc.Endpoint)
	assert.True(t, mc.Handshake)
	assert.Equal(t, cfg.KeepAlive.Timeout, mc.WriteTimeout)
	assert.Equal(t, connection.BackoffConfig{
		Base:        2 * time.Second,
		Max:         60 * time.Second,
		MaxAttempts: connection.RetryForever,
		Jitter:      0.1,
	}, mc.Backoff)
	assert.Equal(t, 5*time.Second, mc.KeepAlive.Interval)
	assert.True(t, mc.KeepAlive.ResetOnAnyMessage)
	assert.False(t, mc.DisableKeepAlive)
	assert.Equal(t, -1, mc.QueueMaxSize)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Static", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Host = "192.168.0.9"
		ep, err := cfg.Resolver().Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, discovery.Endpoint{Host: "192.168.0.9", Port: 8081}, ep)
	})

	t.Run("EnvironmentForcedEmulator", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Discovery = DiscoveryEnvironment
		yes := true
		cfg.Server.Emulator = &yes
		ep, err := cfg.Resolver().Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, discovery.Endpoint{Host: "10.0.2.2", Port: 8081}, ep)
	})

	t.Run("EnvironmentFromVariable", func(t *testing.T) {
		t.Setenv(discovery.EmulatorEnv, "false")
		cfg := Default()
		cfg.Server.Discovery = DiscoveryEnvironment
		ep, err := cfg.Resolver().Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, discovery.Endpoint{Host: "127.0.0.1", Port: 8081}, ep)
	})

	t.Run("MDNSFallsBackToStatic", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Discovery = DiscoveryMDNS
		r, ok := cfg.Resolver().(discovery.FallbackResolver)
		require.True(t, ok)
		require.Len(t, r, 2)
		assert.IsType(t, &discovery.MDNSResolver{}, r[0])
		assert.IsType(t, &discovery.StaticResolver{}, r[1])
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNewProtocolLogger(t *testing.T) {
	cfg := Default()
	fl, err := cfg.NewProtocolLogger()
	require.NoError(t, err)
	assert.Nil(t, fl)

	cfg.Logging.ProtocolLog = filepath.Join(t.TempDir(), "agent.ulog")
	fl, err = cfg.NewProtocolLogger()
	require.NoError(t, err)
	require.NotNil(t, fl)
	assert.Equal(t, cfg.Logging.ProtocolLog, fl.Path())
	require.NoError(t, fl.Close())
}

func TestCaptureOptions(t *testing.T) {
	cfg := Default()
	cfg.Capture.RedactHeaders = []string{"Authorization"}
	opts := cfg.CaptureOptions()
	assert.Equal(t, 256*1024, opts.MaxBodySize)
	assert.Equal(t, []string{"Authorization"}, opts.RedactHeaders)
}
