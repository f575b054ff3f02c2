package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/devagent/pkg/events"
)

// Console renders the event stream to a terminal. It streams assistant text
// deltas as they arrive and re-renders the final message as markdown when
// writing to a TTY. All session state lives in the loop; the console only
// interprets events.
type Console struct {
	out       io.Writer
	markdown  bool
	streaming bool
}

type ConsoleOption func(*Console)

func WithOutput(w io.Writer) ConsoleOption {
	return func(c *Console) { c.out = w }
}

// WithMarkdown forces markdown rendering on or off, overriding TTY
// detection.
func WithMarkdown(enabled bool) ConsoleOption {
	return func(c *Console) { c.markdown = enabled }
}

func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		out:      os.Stdout,
		markdown: isatty.IsTerminal(os.Stdout.Fd()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Handler is the watermill handler consuming the loop's event topic.
func (c *Console) Handler(msg *message.Message) error {
	ev, err := events.NewEventFromJSON(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Msg("console: dropping undecodable event")
		return nil
	}
	c.render(ev)
	return nil
}

func (c *Console) render(ev events.Event) {
	switch e := ev.(type) {
	case *events.EventStart:
		// A fresh start while streaming means the previous attempt was
		// retried; discard its partial output visually.
		if c.streaming {
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, "(retrying...)")
		}
		c.streaming = true
	case *events.EventPartial:
		fmt.Fprint(c.out, e.Delta)
	case *events.EventToolCallStart:
		if c.streaming {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintf(c.out, "→ %s\n", e.Name)
	case *events.EventFinal:
		c.streaming = false
		fmt.Fprintln(c.out)
		if c.markdown && e.Text != "" {
			if rendered, err := glamour.Render(e.Text, "dark"); err == nil {
				fmt.Fprint(c.out, rendered)
			}
		}
	case *events.EventToolDispatchStart:
		fmt.Fprintf(c.out, "[tool] %s %s\n", e.ToolCall.Name, e.ToolCall.Input)
	case *events.EventToolDispatchDone:
		status := "ok"
		if e.ToolResult.IsError {
			status = "error"
		}
		fmt.Fprintf(c.out, "[tool] %s: %s\n", status, firstLine(e.ToolResult.Result))
	case *events.EventAwaitingUser:
		fmt.Fprintf(c.out, "\n? %s\n", e.Query)
	case *events.EventError:
		fmt.Fprintf(c.out, "\nerror (%s): %s\n", e.Kind, e.Cause)
	case *events.EventInterrupt:
		c.streaming = false
		fmt.Fprintln(c.out, "\ninterrupted")
	case *events.EventSessionCompleted:
		fmt.Fprintln(c.out)
	case *events.EventSessionAborted:
		c.streaming = false
		fmt.Fprintf(c.out, "\nsession aborted: %s\n", e.Cause)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
		if i > 120 {
			return s[:i] + "..."
		}
	}
	return s
}
