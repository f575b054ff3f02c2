package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// Streaming events produced by the model gateway.
	EventTypeStart         EventType = "start"
	EventTypePartial       EventType = "partial"
	EventTypeToolCallStart EventType = "tool-call-start"
	EventTypeToolCallDelta EventType = "tool-call-delta"
	EventTypeToolCallDone  EventType = "tool-call-done"
	EventTypeFinal         EventType = "final"
	EventTypeError         EventType = "error"
	EventTypeInterrupt     EventType = "interrupt"

	// Loop lifecycle events, emitted while dispatching tools and when a
	// session reaches a terminal state.
	EventTypeToolDispatchStart EventType = "tool-dispatch-start"
	EventTypeToolDispatchDone  EventType = "tool-dispatch-done"
	EventTypeAwaitingUser      EventType = "awaiting-user"
	EventTypeSessionCompleted  EventType = "session-completed"
	EventTypeSessionAborted    EventType = "session-aborted"
)

// ErrorKind distinguishes gateway failures that were retried and exhausted
// from those that are not worth retrying at all.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata carries correlation identifiers along with every event.
type EventMetadata struct {
	ID        uuid.UUID `json:"event_id" yaml:"event_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("event_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON this event was deserialized from, if any
	payload []byte
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }
func (e *EventImpl) Payload() []byte         { return e.payload }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = (*EventImpl)(nil)

// ToolCall is the event-level view of a model-requested tool invocation.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// ToolResult is the event-level view of a completed tool execution.
type ToolResult struct {
	ID      string `json:"id"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error,omitempty"`
}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

// EventPartial carries one text delta plus the completion accumulated so far.
type EventPartial struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialEvent(metadata EventMetadata, delta string, completion string) *EventPartial {
	return &EventPartial{
		EventImpl:  EventImpl{Type_: EventTypePartial, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

type EventToolCallStart struct {
	EventImpl
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewToolCallStartEvent(metadata EventMetadata, id string, name string) *EventToolCallStart {
	return &EventToolCallStart{
		EventImpl: EventImpl{Type_: EventTypeToolCallStart, Metadata_: metadata},
		ID:        id,
		Name:      name,
	}
}

// EventToolCallDelta carries a partial JSON fragment of a tool call's arguments.
type EventToolCallDelta struct {
	EventImpl
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

func NewToolCallDeltaEvent(metadata EventMetadata, id string, delta string) *EventToolCallDelta {
	return &EventToolCallDelta{
		EventImpl: EventImpl{Type_: EventTypeToolCallDelta, Metadata_: metadata},
		ID:        id,
		Delta:     delta,
	}
}

type EventToolCallDone struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallDoneEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallDone {
	return &EventToolCallDone{
		EventImpl: EventImpl{Type_: EventTypeToolCallDone, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

// EventFinal terminates a successful stream. Text holds the complete
// assistant message, ToolCalls the fully merged tool invocations.
type EventFinal struct {
	EventImpl
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, text string, toolCalls []ToolCall) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
		ToolCalls: toolCalls,
	}
}

// EventError terminates a failed stream. For transient failures it is only
// emitted after the gateway's retry budget is exhausted.
type EventError struct {
	EventImpl
	Kind  ErrorKind `json:"kind"`
	Cause string    `json:"cause"`
}

func NewErrorEvent(metadata EventMetadata, kind ErrorKind, err error) *EventError {
	cause := ""
	if err != nil {
		cause = err.Error()
	}
	return &EventError{
		EventImpl: EventImpl{Type_: EventTypeError, Metadata_: metadata},
		Kind:      kind,
		Cause:     cause,
	}
}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

type EventToolDispatchStart struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolDispatchStartEvent(metadata EventMetadata, toolCall ToolCall) *EventToolDispatchStart {
	return &EventToolDispatchStart{
		EventImpl: EventImpl{Type_: EventTypeToolDispatchStart, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolDispatchDone struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolDispatchDoneEvent(metadata EventMetadata, toolResult ToolResult) *EventToolDispatchDone {
	return &EventToolDispatchDone{
		EventImpl:  EventImpl{Type_: EventTypeToolDispatchDone, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

type EventAwaitingUser struct {
	EventImpl
	Query string `json:"query"`
}

func NewAwaitingUserEvent(metadata EventMetadata, query string) *EventAwaitingUser {
	return &EventAwaitingUser{
		EventImpl: EventImpl{Type_: EventTypeAwaitingUser, Metadata_: metadata},
		Query:     query,
	}
}

type EventSessionCompleted struct {
	EventImpl
	Text string `json:"text"`
}

func NewSessionCompletedEvent(metadata EventMetadata, text string) *EventSessionCompleted {
	return &EventSessionCompleted{
		EventImpl: EventImpl{Type_: EventTypeSessionCompleted, Metadata_: metadata},
		Text:      text,
	}
}

type EventSessionAborted struct {
	EventImpl
	Kind  ErrorKind `json:"kind,omitempty"`
	Cause string    `json:"cause"`
}

func NewSessionAbortedEvent(metadata EventMetadata, kind ErrorKind, cause string) *EventSessionAborted {
	return &EventSessionAborted{
		EventImpl: EventImpl{Type_: EventTypeSessionAborted, Metadata_: metadata},
		Kind:      kind,
		Cause:     cause,
	}
}

// NewEventFromJSON decodes an event serialized by a sink back into its typed
// representation.
func NewEventFromJSON(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, errors.Wrap(err, "decode event header")
	}

	var ev Event
	switch hdr.Type {
	case EventTypeStart:
		ev = &EventStart{}
	case EventTypePartial:
		ev = &EventPartial{}
	case EventTypeToolCallStart:
		ev = &EventToolCallStart{}
	case EventTypeToolCallDelta:
		ev = &EventToolCallDelta{}
	case EventTypeToolCallDone:
		ev = &EventToolCallDone{}
	case EventTypeFinal:
		ev = &EventFinal{}
	case EventTypeError:
		ev = &EventError{}
	case EventTypeInterrupt:
		ev = &EventInterrupt{}
	case EventTypeToolDispatchStart:
		ev = &EventToolDispatchStart{}
	case EventTypeToolDispatchDone:
		ev = &EventToolDispatchDone{}
	case EventTypeAwaitingUser:
		ev = &EventAwaitingUser{}
	case EventTypeSessionCompleted:
		ev = &EventSessionCompleted{}
	case EventTypeSessionAborted:
		ev = &EventSessionAborted{}
	default:
		return nil, errors.Errorf("unknown event type: %s", hdr.Type)
	}

	if err := json.Unmarshal(b, ev); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", hdr.Type)
	}
	setPayload(ev, b)
	return ev, nil
}

func setPayload(ev Event, b []byte) {
	type payloadSetter interface{ setPayload([]byte) }
	if s, ok := ev.(payloadSetter); ok {
		s.setPayload(b)
	}
}

func (e *EventImpl) setPayload(b []byte) { e.payload = b }
