package loop

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/devagent/pkg/conversation"
	"github.com/go-go-golems/devagent/pkg/events"
	"github.com/go-go-golems/devagent/pkg/gateway"
	"github.com/go-go-golems/devagent/pkg/tools"
)

// phase names the loop's state machine positions, for logging and tests.
type phase string

const (
	phaseRequestingModel  phase = "requesting-model"
	phaseStreaming        phase = "streaming-response"
	phaseDispatchingTools phase = "dispatching-tools"
)

const defaultAskUserToolName = "ask_user"

// Loop orchestrates one session: request the model, stream its response,
// dispatch the tools it asked for, fold results back into the conversation,
// repeat. It is a single-threaded cooperative state machine: exactly one of
// {awaiting the model stream, executing a tool} is in flight at any
// instant.
type Loop struct {
	gw         gateway.Gateway
	registry   *tools.Registry
	dispatcher *tools.Dispatcher

	maxIterations   int
	askUserToolName string
}

type Option func(*Loop)

func WithGateway(gw gateway.Gateway) Option {
	return func(l *Loop) { l.gw = gw }
}

func WithRegistry(registry *tools.Registry) Option {
	return func(l *Loop) { l.registry = registry }
}

func WithDispatcher(dispatcher *tools.Dispatcher) Option {
	return func(l *Loop) { l.dispatcher = dispatcher }
}

func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.maxIterations = n }
}

// WithAskUserToolName names the registry entry whose dispatch flips the
// session into AwaitingUser. The transition is driven by this explicit,
// typed signal, never by text heuristics.
func WithAskUserToolName(name string) Option {
	return func(l *Loop) { l.askUserToolName = name }
}

func New(opts ...Option) *Loop {
	l := &Loop{
		maxIterations:   20,
		askUserToolName: defaultAskUserToolName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Run drives the session from a new user turn to a terminal state. Events
// are forwarded to the context's sinks as they arrive, so streaming is
// observable turn by turn rather than buffered to completion.
func (l *Loop) Run(ctx context.Context, sess *Session, userInput string) error {
	if l.gw == nil {
		return errors.New("loop gateway is nil")
	}
	if l.registry == nil || l.dispatcher == nil {
		return errors.New("loop tool registry is nil")
	}
	if sess == nil {
		return errors.New("loop session is nil")
	}

	if err := sess.Conversation.Append(conversation.NewUserMessage(userInput)); err != nil {
		return errors.Wrap(err, "append user message")
	}
	sess.setStatus(StatusActive)

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		log.Debug().
			Int("iteration", iteration+1).
			Str("session_id", sess.ID).
			Str("phase", string(phaseRequestingModel)).
			Msg("loop: requesting model")

		metadata := events.EventMetadata{
			ID:        uuid.New(),
			SessionID: sess.ID,
			TurnID:    uuid.NewString(),
		}

		final, err := l.streamRound(ctx, sess, metadata)
		if err != nil {
			return err
		}
		if final == nil {
			// streamRound already recorded the abort.
			return errors.New(sess.AbortCause())
		}

		calls := make([]conversation.ToolCall, 0, len(final.ToolCalls))
		for _, tc := range final.ToolCalls {
			calls = append(calls, conversation.ToolCall{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: json.RawMessage(tc.Input),
			})
		}

		if err := sess.Conversation.Append(conversation.NewAssistantMessage(final.Text, calls...)); err != nil {
			l.abort(ctx, sess, metadata, "", errors.Wrap(err, "append assistant message").Error())
			return err
		}

		if len(calls) == 0 {
			sess.setStatus(StatusCompleted)
			events.PublishEventToContext(ctx, events.NewSessionCompletedEvent(metadata, final.Text))
			log.Info().Str("session_id", sess.ID).Msg("loop: session completed")
			return nil
		}

		if err := l.dispatchRound(ctx, sess, metadata, calls); err != nil {
			return err
		}
	}

	cause := errors.Errorf("max iterations (%d) reached", l.maxIterations)
	l.abort(ctx, sess, events.EventMetadata{ID: uuid.New(), SessionID: sess.ID}, "", cause.Error())
	return cause
}

// streamRound consumes one gateway stream, forwarding every event to the
// UI sinks. It returns the final event, or nil after recording an abort.
func (l *Loop) streamRound(ctx context.Context, sess *Session, metadata events.EventMetadata) (*events.EventFinal, error) {
	req := gateway.Request{
		Messages: sess.Conversation.RenderForModel(),
		Tools:    l.registry.ListTools(),
		Metadata: metadata,
	}

	log.Debug().
		Str("session_id", sess.ID).
		Str("phase", string(phaseStreaming)).
		Int("message_count", len(req.Messages)).
		Int("tool_count", len(req.Tools)).
		Msg("loop: consuming model stream")

	var final *events.EventFinal
	var apiErr *events.EventError
	interrupted := false

	for ev := range l.gw.StreamCompletion(ctx, req) {
		events.PublishEventToContext(ctx, ev)
		switch e := ev.(type) {
		case *events.EventFinal:
			final = e
		case *events.EventError:
			apiErr = e
		case *events.EventInterrupt:
			interrupted = true
		}
	}

	if apiErr != nil {
		// Retry is already exhausted inside the gateway; this is a
		// terminal, user-visible failure for the session.
		l.abort(ctx, sess, metadata, apiErr.Kind, apiErr.Cause)
		return nil, errors.Errorf("model gateway failed: %s", apiErr.Cause)
	}
	if interrupted || ctx.Err() != nil {
		l.abort(ctx, sess, metadata, "", "cancelled while streaming model response")
		return nil, ctx.Err()
	}
	if final == nil {
		l.abort(ctx, sess, metadata, "", "model stream ended without a terminal event")
		return nil, nil
	}
	return final, nil
}

// dispatchRound executes the pending tool calls sequentially, in the order
// the model emitted them. Later calls may depend on filesystem state
// produced by earlier ones, so there is no parallel dispatch within a turn.
func (l *Loop) dispatchRound(ctx context.Context, sess *Session, metadata events.EventMetadata, calls []conversation.ToolCall) error {
	log.Debug().
		Str("session_id", sess.ID).
		Str("phase", string(phaseDispatchingTools)).
		Int("call_count", len(calls)).
		Msg("loop: dispatching tools")

	for _, call := range calls {
		// A cancel delivered mid-turn means no new dispatch begins; results
		// already appended stay in the conversation.
		if ctx.Err() != nil {
			l.abort(ctx, sess, metadata, "", "cancelled while dispatching tools")
			return ctx.Err()
		}

		evCall := events.ToolCall{ID: call.ID, Name: call.Name, Input: string(call.Input)}
		events.PublishEventToContext(ctx, events.NewToolDispatchStartEvent(metadata, evCall))

		asking := call.Name == l.askUserToolName
		if asking {
			sess.setStatus(StatusAwaitingUser)
			events.PublishEventToContext(ctx, events.NewAwaitingUserEvent(metadata, askUserQuery(call.Input)))
		}

		result := l.dispatcher.Dispatch(ctx, tools.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Input,
		})

		if asking {
			sess.setStatus(StatusActive)
		}

		output := result.Result
		if result.IsError() {
			output = result.Error
		}
		events.PublishEventToContext(ctx, events.NewToolDispatchDoneEvent(metadata, events.ToolResult{
			ID:      result.ID,
			Result:  output,
			IsError: result.IsError(),
		}))

		if err := sess.Conversation.Append(conversation.NewToolResultMessage(call.ID, output, result.IsError())); err != nil {
			l.abort(ctx, sess, metadata, "", errors.Wrap(err, "append tool result").Error())
			return err
		}
	}

	return nil
}

func (l *Loop) abort(ctx context.Context, sess *Session, metadata events.EventMetadata, kind events.ErrorKind, cause string) {
	sess.abort(cause)
	events.PublishEventToContext(ctx, events.NewSessionAbortedEvent(metadata, kind, cause))
	log.Warn().Str("session_id", sess.ID).Str("cause", cause).Msg("loop: session aborted")
}

func askUserQuery(input json.RawMessage) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	return args.Query
}
