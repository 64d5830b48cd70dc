// Command unde-agent connects to an unde desktop tool and relays
// diagnostics to it.
//
// Usage:
//
//	unde-agent run [--interactive]
//	unde-agent probe [flags] <url>...
//
// Examples:
//
//	# Connect using a config file and type messages by hand
//	unde-agent --config agent.yaml run --interactive
//
//	# Fetch a URL through the capturing transport and relay the exchange
//	unde-agent --host 192.168.1.10 probe https://example.com/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/VadymVolin/unde-library/pkg/config"
	"github.com/VadymVolin/unde-library/pkg/version"
)

type rootOptions struct {
	configPath  string
	host        string
	port        int
	discovery   string
	handshake   bool
	compression bool
	logLevel    string
	logFormat   string
	protocolLog string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "unde-agent",
		Version:       version.Current,
		Short:         "Relay diagnostics to an unde desktop tool",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	pf.StringVar(&opts.host, "host", "", "Desktop tool host (overrides server.host)")
	pf.IntVar(&opts.port, "port", 0, "Desktop tool port (overrides server.port)")
	pf.StringVar(&opts.discovery, "discovery", "", "Endpoint discovery: static, environment, mdns")
	pf.BoolVar(&opts.handshake, "handshake", false, "Require the Ping/Pong handshake")
	pf.BoolVar(&opts.compression, "compression", false, "Gzip outgoing frames")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")
	pf.StringVar(&opts.protocolLog, "protocol-log", "", "Write a protocol capture (.ulog) to this file")

	cmd.AddCommand(newRunCommand(opts), newProbeCommand(opts))
	return cmd
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.AgentConfig, error) {
	path := opts.configPath
	var (
		cfg *config.AgentConfig
		err error
	)
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.LoadWithDefaults(path); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("discovery") {
		cfg.Server.Discovery = opts.discovery
	}
	if flags.Changed("handshake") {
		cfg.Connection.Handshake = opts.handshake
	}
	if flags.Changed("compression") {
		cfg.Connection.Compression = opts.compression
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flags.Changed("protocol-log") {
		cfg.Logging.ProtocolLog = opts.protocolLog
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
