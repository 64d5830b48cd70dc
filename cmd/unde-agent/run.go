package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and keep relaying until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interactive {
				console, err := newConsole()
				if err != nil {
					return err
				}
				a, err := newAgent(cfg, console.Stderr(), console.printCommand)
				if err != nil {
					console.Close()
					return err
				}
				defer a.close()
				console.agent = a
				a.start()
				console.Run(ctx)
				return nil
			}

			out := cmd.OutOrStdout()
			a, err := newAgent(cfg, cmd.ErrOrStderr(), func(c *wire.Command) {
				printCommand(out, c)
			})
			if err != nil {
				return err
			}
			defer a.close()
			a.start()

			<-ctx.Done()
			fmt.Fprintln(out, formatStats(a.manager.Stats()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Open an interactive console")
	return cmd
}

func printCommand(w io.Writer, c *wire.Command) {
	fmt.Fprintf(w, "command: %s\n", c.Data)
}
