package ui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/devagent/pkg/events"
)

func deliver(t *testing.T, c *Console, ev events.Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, c.Handler(message.NewMessage(uuid.NewString(), payload)))
}

func TestConsoleStreamsDeltas(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithOutput(&buf), WithMarkdown(false))
	md := events.EventMetadata{ID: uuid.New()}

	deliver(t, c, events.NewStartEvent(md))
	deliver(t, c, events.NewPartialEvent(md, "hel", "hel"))
	deliver(t, c, events.NewPartialEvent(md, "lo", "hello"))
	deliver(t, c, events.NewFinalEvent(md, "hello", nil))

	assert.Contains(t, buf.String(), "hello")
}

func TestConsoleAnnouncesToolDispatch(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithOutput(&buf), WithMarkdown(false))
	md := events.EventMetadata{ID: uuid.New()}

	deliver(t, c, events.NewToolDispatchStartEvent(md, events.ToolCall{
		ID: "tc-1", Name: "run_command", Input: `{"command":"ls"}`,
	}))
	deliver(t, c, events.NewToolDispatchDoneEvent(md, events.ToolResult{
		ID: "tc-1", Result: "main.go\ngo.mod", IsError: false,
	}))

	out := buf.String()
	assert.Contains(t, out, "run_command")
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "go.mod", "multi-line results are collapsed to the first line")
}

func TestConsolePrintsAbortCause(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(WithOutput(&buf), WithMarkdown(false))
	md := events.EventMetadata{ID: uuid.New()}

	deliver(t, c, events.NewSessionAbortedEvent(md, events.ErrorKindPermanent, "invalid api key"))
	assert.Contains(t, buf.String(), "session aborted: invalid api key")
}

func TestConsoleIgnoresGarbagePayloads(t *testing.T) {
	c := NewConsole(WithOutput(&bytes.Buffer{}), WithMarkdown(false))
	assert.NoError(t, c.Handler(message.NewMessage(uuid.NewString(), []byte("not json"))))
}
