package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// console is the interactive mode of the run command.
type console struct {
	rl    *readline.Instance
	agent *agent
}

func newConsole() (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "agent> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{rl: rl}, nil
}

// Stderr returns a writer that coordinates with the prompt.
func (c *console) Stderr() io.Writer {
	return c.rl.Stderr()
}

func (c *console) Close() error {
	return c.rl.Close()
}

func (c *console) printCommand(cmd *wire.Command) {
	printCommand(c.rl.Stdout(), cmd)
}

// Run reads commands until quit, EOF or ctx is done.
func (c *console) Run(ctx context.Context) {
	defer c.rl.Close()

	go func() {
		<-ctx.Done()
		c.rl.Close()
	}()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}
		if c.exec(c.rl.Stdout(), line) {
			return
		}
	}
}

// exec runs one console line and reports whether the console should exit.
func (c *console) exec(w io.Writer, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "send", "s":
		if len(parts) < 3 {
			fmt.Fprintln(w, "Usage: send <result|logcat|telemetry|database> <text or JSON object>")
			return false
		}
		rest := strings.TrimSpace(input[len(parts[0]):])
		body := strings.TrimSpace(rest[len(parts[1]):])
		msg, err := buildMessage(parts[1], body, time.Now())
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return false
		}
		c.agent.manager.Send(msg)
		fmt.Fprintf(w, "queued %s (%s)\n", msg.Kind(), c.agent.manager.State())

	case "status", "st":
		fmt.Fprintln(w, formatStats(c.agent.manager.Stats()))

	case "quit", "exit", "q":
		fmt.Fprintln(w, "Exiting...")
		return true

	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Agent Commands:
  send result <text>           - Send a Result message
  send logcat <text|json>      - Send a log entry
  send telemetry <json>        - Send a telemetry object
  send database <json>         - Send a database snapshot object
  status                       - Show connection statistics
  help                         - Show this help
  quit                         - Exit`)
}

// buildMessage turns console input into a message. Plain text given to an
// object kind is wrapped as {"message": text, "time": ms}.
func buildMessage(kind, body string, now time.Time) (wire.Message, error) {
	k := wire.Kind(strings.ToLower(kind))
	if k == wire.KindResult {
		return &wire.Result{Data: body}, nil
	}

	var data json.RawMessage
	if strings.HasPrefix(body, "{") {
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("invalid JSON object")
		}
		data = json.RawMessage(body)
	} else {
		obj, err := wire.NewObject(map[string]any{"message": body, "time": now.UnixMilli()})
		if err != nil {
			return nil, err
		}
		data = obj
	}

	switch k {
	case wire.KindLogcat:
		return &wire.Logcat{Data: data}, nil
	case wire.KindTelemetry:
		return &wire.Telemetry{Data: data}, nil
	case wire.KindDatabase:
		return &wire.Database{Data: data}, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}
