// Command unde-desk is a reference desktop peer for unde agents.
//
// It listens for agent connections, advertises itself over mDNS, answers
// the handshake, keeps the connection alive and prints every message it
// receives.
//
// Usage:
//
//	unde-desk [flags]
//
// Examples:
//
//	# Listen on the default port and advertise as this host
//	unde-desk
//
//	# Record a protocol capture
//	unde-desk --protocol-log desk.ulog
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VadymVolin/unde-library/pkg/discovery"
	"github.com/VadymVolin/unde-library/pkg/log"
	"github.com/VadymVolin/unde-library/pkg/transport"
	"github.com/VadymVolin/unde-library/pkg/version"
)

type deskOptions struct {
	port        int
	instance    string
	noAdvertise bool
	verbose     bool
	logLevel    string
	protocolLog string
	compression bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &deskOptions{}
	cmd := &cobra.Command{
		Use:           "unde-desk",
		Version:       version.Current,
		Short:         "Reference desktop peer for unde agents",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDesk(ctx, opts)
		},
	}

	host, _ := os.Hostname()
	f := cmd.Flags()
	f.IntVar(&opts.port, "port", discovery.DefaultPort, "Listen port")
	f.StringVar(&opts.instance, "instance", host, "mDNS instance name")
	f.BoolVar(&opts.noAdvertise, "no-advertise", false, "Do not advertise over mDNS")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Also print keep-alives")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&opts.protocolLog, "protocol-log", "", "Write a protocol capture (.ulog) to this file")
	f.BoolVar(&opts.compression, "compression", false, "Gzip outgoing frames")
	return cmd
}

func runDesk(ctx context.Context, opts *deskOptions) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var protoLogger log.Logger
	if opts.protocolLog != "" {
		fl, err := log.NewFileLogger(opts.protocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		protoLogger = fl
		logger.Info("protocol logging enabled", "path", fl.Path())
	}

	p := newPrinter(os.Stdout, opts.verbose)
	server := transport.NewServer(transport.ServerConfig{
		Address: fmt.Sprintf(":%d", opts.port),
		Session: transport.SessionConfig{
			Codec:          transport.Codec{Compress: opts.compression},
			KeepAlive:      transport.DefaultKeepAliveConfig(),
			ProtocolLogger: protoLogger,
		},
		Handler: p.handler,
		Logger:  logger,
		OnDisconnect: func(s *transport.Session, err error) {
			st := s.Stats()
			logger.Info("session ended", "conn_id", s.ID(), "frames_in", st.FramesIn, "frames_out", st.FramesOut, "error", err)
		},
	})
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()
	logger.Info("listening", "addr", server.Addr())

	if !opts.noAdvertise {
		adv := discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
		if err := adv.Advertise(discovery.ServiceInfo{Instance: opts.instance, Port: opts.port, Name: "unde-desk"}); err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Stop()
			logger.Info("advertising", "service", discovery.ServiceType, "instance", opts.instance)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
