// Command unde-log views and analyzes protocol log files.
//
// Log files are written by unde-agent and unde-desk when started with the
// --protocol-log flag.
//
// Usage:
//
//	unde-log <command> [flags] <file.ulog>
//
// Examples:
//
//	# View all events
//	unde-log view agent.ulog
//
//	# View only outgoing network messages
//	unde-log view --layer wire --direction out --kind network agent.ulog
//
//	# Export to CSV
//	unde-log export --format csv -o agent.csv agent.ulog
//
//	# Keep one connection
//	unde-log filter --conn-id 3f2a9c1e-... -o one.ulog agent.ulog
//
//	# Show statistics
//	unde-log stats agent.ulog
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/VadymVolin/unde-library/cmd/unde-log/commands"
	"github.com/VadymVolin/unde-library/pkg/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "unde-log",
		Version:       version.Current,
		Short:         "Protocol log analyzer",
		Long:          "unde-log views, filters, exports and summarizes .ulog protocol capture files.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(newViewCommand(), newExportCommand(), newFilterCommand(), newStatsCommand())
	return cmd
}

func newViewCommand() *cobra.Command {
	var layer, direction, category, kind string
	cmd := &cobra.Command{
		Use:   "view [flags] <file.ulog>",
		Short: "View log file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := commands.BuildViewFilter(layer, direction, category, kind)
			if err != nil {
				return err
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Filter by layer (transport, wire, connection)")
	cmd.Flags().StringVar(&direction, "direction", "", "Filter by direction (in, out, local)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (message, control, state, error, queue)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by message kind (network, logcat, ...)")
	return cmd
}

func newExportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export [flags] <file.ulog>",
		Short: "Export log file to JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return commands.RunExport(args[0], format, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", commands.FormatJSONL, "Output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newFilterCommand() *cobra.Command {
	var opts commands.FilterOptions
	cmd := &cobra.Command{
		Use:   "filter [flags] <file.ulog>",
		Short: "Filter log file and write to new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := commands.RunFilter(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, opts.Output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	f.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	f.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	f.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	f.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, connection)")
	f.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out, local)")
	f.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error, queue)")
	f.StringVar(&opts.Kind, "kind", "", "Filter by message kind")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.ulog>",
		Short: "Show statistics about the log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}
