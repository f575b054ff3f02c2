package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata() EventMetadata {
	return EventMetadata{
		ID:        uuid.New(),
		SessionID: "sess-1",
		TurnID:    "turn-1",
		Model:     "gpt-4",
	}
}

func roundtrip(t *testing.T, ev Event) Event {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	decoded, err := NewEventFromJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, ev.Type(), decoded.Type())
	assert.Equal(t, ev.Metadata().SessionID, decoded.Metadata().SessionID)
	return decoded
}

func TestEventJSONRoundtrip(t *testing.T) {
	md := testMetadata()

	partial := roundtrip(t, NewPartialEvent(md, "wor", "hello wor")).(*EventPartial)
	assert.Equal(t, "wor", partial.Delta)
	assert.Equal(t, "hello wor", partial.Completion)

	call := ToolCall{ID: "tc-1", Name: "run_command", Input: `{"command":"ls"}`}
	done := roundtrip(t, NewToolCallDoneEvent(md, call)).(*EventToolCallDone)
	assert.Equal(t, call, done.ToolCall)

	final := roundtrip(t, NewFinalEvent(md, "done", []ToolCall{call})).(*EventFinal)
	assert.Equal(t, "done", final.Text)
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "run_command", final.ToolCalls[0].Name)

	errEv := roundtrip(t, NewErrorEvent(md, ErrorKindTransient, assert.AnError)).(*EventError)
	assert.Equal(t, ErrorKindTransient, errEv.Kind)
	assert.NotEmpty(t, errEv.Cause)

	dispatch := roundtrip(t, NewToolDispatchDoneEvent(md, ToolResult{
		ID: "tc-1", Result: "ok", IsError: false,
	})).(*EventToolDispatchDone)
	assert.Equal(t, "ok", dispatch.ToolResult.Result)

	awaiting := roundtrip(t, NewAwaitingUserEvent(md, "continue?")).(*EventAwaitingUser)
	assert.Equal(t, "continue?", awaiting.Query)

	aborted := roundtrip(t, NewSessionAbortedEvent(md, ErrorKindPermanent, "bad key")).(*EventSessionAborted)
	assert.Equal(t, "bad key", aborted.Cause)
	assert.Equal(t, ErrorKindPermanent, aborted.Kind)
}

func TestNewEventFromJSONRejectsUnknownType(t *testing.T) {
	_, err := NewEventFromJSON([]byte(`{"type":"mystery"}`))
	assert.Error(t, err)
}

func TestDecodedEventKeepsRawPayload(t *testing.T) {
	md := testMetadata()
	payload, err := json.Marshal(NewStartEvent(md))
	require.NoError(t, err)

	decoded, err := NewEventFromJSON(payload)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(decoded.Payload()))
}
