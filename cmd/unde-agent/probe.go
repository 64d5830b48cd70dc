package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VadymVolin/unde-library/pkg/capture"
	"github.com/VadymVolin/unde-library/pkg/config"
)

type probeOptions struct {
	method  string
	data    string
	headers []string
	wait    time.Duration
	timeout time.Duration
}

func newProbeCommand(opts *rootOptions) *cobra.Command {
	p := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe [flags] <url>...",
		Short: "Perform HTTP requests and relay the captured exchanges",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runProbe(cmd.Context(), cfg, p, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&p.method, "method", "X", http.MethodGet, "HTTP method")
	f.StringVarP(&p.data, "data", "d", "", "Request body")
	f.StringArrayVarP(&p.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.DurationVar(&p.wait, "wait", 10*time.Second, "How long to wait for the exchanges to be delivered")
	f.DurationVar(&p.timeout, "timeout", 30*time.Second, "Per-request timeout")
	return cmd
}

func runProbe(ctx context.Context, cfg *config.AgentConfig, p *probeOptions, urls []string, out, logOut io.Writer) error {
	a, err := newAgent(cfg, logOut, nil)
	if err != nil {
		return err
	}
	defer a.close()
	a.start()

	client := capture.NewClient(a.manager, cfg.CaptureOptions())
	client.Timeout = p.timeout

	failed := 0
	for _, u := range urls {
		if err := probeOne(ctx, client, p, u, out); err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", p.method, u, err)
			failed++
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()
	if left := a.drain(waitCtx); left > 0 {
		return fmt.Errorf("%d captured exchanges not delivered (%s)", left, a.manager.State())
	}
	fmt.Fprintln(out, formatStats(a.manager.Stats()))
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(urls))
	}
	return nil
}

func probeOne(ctx context.Context, client *http.Client, p *probeOptions, url string, out io.Writer) error {
	var body io.Reader
	if p.data != "" {
		body = strings.NewReader(p.data)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(p.method), url, body)
	if err != nil {
		return err
	}
	for _, h := range p.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	n, err := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s -> %s (%d bytes)\n", req.Method, url, resp.Status, n)
	return nil
}
