package loop

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/devagent/pkg/conversation"
	"github.com/go-go-golems/devagent/pkg/events"
	"github.com/go-go-golems/devagent/pkg/gateway"
	"github.com/go-go-golems/devagent/pkg/tools"
)

// scriptedGateway replays one canned event sequence per completion round.
type scriptedGateway struct {
	mu     sync.Mutex
	rounds [][]events.Event
	calls  int
}

func (g *scriptedGateway) StreamCompletion(ctx context.Context, req gateway.Request) <-chan events.Event {
	g.mu.Lock()
	round := g.calls
	g.calls++
	g.mu.Unlock()

	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		if round >= len(g.rounds) {
			ch <- events.NewErrorEvent(req.Metadata, events.ErrorKindPermanent,
				assert.AnError)
			return
		}
		for _, ev := range g.rounds[round] {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// collectingSink records every event the loop forwards.
type collectingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *collectingSink) PublishEvent(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectingSink) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type())
	}
	return out
}

type recordArgs struct {
	Label string `json:"label" jsonschema:"required,description=Label to record"`
}

// newRecorderLoop builds a loop whose single tool records dispatch order,
// with an artificial latency per label to prove order does not depend on
// execution time.
func newRecorderLoop(t *testing.T, gw gateway.Gateway, delays map[string]time.Duration, opts ...Option) (*Loop, *[]string) {
	t.Helper()

	var mu sync.Mutex
	var order []string
	def, err := tools.NewToolFromFunc("record", "records the label", func(in recordArgs) (string, error) {
		if d := delays[in.Label]; d > 0 {
			time.Sleep(d)
		}
		mu.Lock()
		order = append(order, in.Label)
		mu.Unlock()
		return "recorded " + in.Label, nil
	})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(*def))

	allOpts := append([]Option{
		WithGateway(gw),
		WithRegistry(registry),
		WithDispatcher(tools.NewDispatcher(registry, tools.DefaultConfig())),
	}, opts...)
	return New(allOpts...), &order
}

func finalRound(text string, calls ...events.ToolCall) []events.Event {
	md := events.EventMetadata{}
	evs := []events.Event{events.NewStartEvent(md)}
	if text != "" {
		evs = append(evs, events.NewPartialEvent(md, text, text))
	}
	evs = append(evs, events.NewFinalEvent(md, text, calls))
	return evs
}

func recordCall(id, label string) events.ToolCall {
	input, _ := json.Marshal(map[string]string{"label": label})
	return events.ToolCall{ID: id, Name: "record", Input: string(input)}
}

func TestRunCompletesWithoutToolCalls(t *testing.T) {
	gw := &scriptedGateway{rounds: [][]events.Event{
		finalRound("all done"),
	}}
	l, _ := newRecorderLoop(t, gw, nil)
	sess := NewSession("system")

	sink := &collectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	require.NoError(t, l.Run(ctx, sess, "hello"))
	assert.Equal(t, StatusCompleted, sess.Status())

	msgs := sess.Conversation.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "all done", msgs[1].Content.(*conversation.ChatMessageContent).Text)

	types := sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.EventTypeSessionCompleted, types[len(types)-1])
}

func TestToolDispatchOrderMatchesEmissionOrder(t *testing.T) {
	gw := &scriptedGateway{rounds: [][]events.Event{
		finalRound("",
			recordCall("tc-a", "A"),
			recordCall("tc-b", "B"),
			recordCall("tc-c", "C"),
		),
		finalRound("done"),
	}}
	// A is slowest; order must still be A, B, C.
	l, order := newRecorderLoop(t, gw, map[string]time.Duration{
		"A": 50 * time.Millisecond,
		"B": 10 * time.Millisecond,
	})
	sess := NewSession("")

	require.NoError(t, l.Run(context.Background(), sess, "run them"))
	assert.Equal(t, []string{"A", "B", "C"}, *order)
	assert.Equal(t, StatusCompleted, sess.Status())

	// Results are paired in the conversation before the next round.
	var resultIDs []string
	for _, msg := range sess.Conversation.Messages() {
		if content, ok := msg.Content.(*conversation.ToolResultContent); ok {
			resultIDs = append(resultIDs, content.ToolID)
		}
	}
	assert.Equal(t, []string{"tc-a", "tc-b", "tc-c"}, resultIDs)
}

func TestGatewayErrorAbortsSessionBeforeDispatch(t *testing.T) {
	md := events.EventMetadata{}
	gw := &scriptedGateway{rounds: [][]events.Event{
		{
			events.NewStartEvent(md),
			events.NewErrorEvent(md, events.ErrorKindPermanent, assert.AnError),
		},
	}}
	l, order := newRecorderLoop(t, gw, nil)
	sess := NewSession("")

	sink := &collectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	err := l.Run(ctx, sess, "hello")
	require.Error(t, err)
	assert.Equal(t, StatusAborted, sess.Status())
	assert.NotEmpty(t, sess.AbortCause())
	assert.Empty(t, *order, "no tool may run after a terminal gateway error")

	types := sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.EventTypeSessionAborted, types[len(types)-1])
}

func TestToolErrorResultKeepsLoopRunning(t *testing.T) {
	gw := &scriptedGateway{rounds: [][]events.Event{
		finalRound("", events.ToolCall{ID: "tc-1", Name: "no_such_tool", Input: "{}"}),
		finalRound("recovered"),
	}}
	l, _ := newRecorderLoop(t, gw, nil)
	sess := NewSession("")

	require.NoError(t, l.Run(context.Background(), sess, "go"))
	assert.Equal(t, StatusCompleted, sess.Status())

	var sawErrorResult bool
	for _, msg := range sess.Conversation.Messages() {
		if content, ok := msg.Content.(*conversation.ToolResultContent); ok && content.IsError {
			sawErrorResult = true
		}
	}
	assert.True(t, sawErrorResult, "unknown tool must surface as an error result, not a crash")
}

func TestAskUserDispatchPassesThroughAwaitingUser(t *testing.T) {
	var statusDuringPrompt Status

	registry := tools.NewRegistry()
	sess := NewSession("")

	askDef, err := tools.NewToolFromFunc("ask_user", "asks the user", func(in struct {
		Query string `json:"query" jsonschema:"required"`
	}) (string, error) {
		statusDuringPrompt = sess.Status()
		return "user says yes", nil
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(*askDef))

	input, _ := json.Marshal(map[string]string{"query": "proceed?"})
	gw := &scriptedGateway{rounds: [][]events.Event{
		finalRound("", events.ToolCall{ID: "tc-ask", Name: "ask_user", Input: string(input)}),
		finalRound("done"),
	}}

	l := New(
		WithGateway(gw),
		WithRegistry(registry),
		WithDispatcher(tools.NewDispatcher(registry, tools.DefaultConfig())),
		WithAskUserToolName("ask_user"),
	)

	sink := &collectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	require.NoError(t, l.Run(ctx, sess, "do the thing"))
	assert.Equal(t, StatusAwaitingUser, statusDuringPrompt, "session must be awaiting-user while the prompt blocks")
	assert.Equal(t, StatusCompleted, sess.Status())

	var sawAwaiting bool
	for _, typ := range sink.types() {
		if typ == events.EventTypeAwaitingUser {
			sawAwaiting = true
		}
	}
	assert.True(t, sawAwaiting)
}

func TestMaxIterationsAborts(t *testing.T) {
	// The model keeps asking for tools forever.
	rounds := make([][]events.Event, 0, 8)
	for i := 0; i < 8; i++ {
		rounds = append(rounds, finalRound("", recordCall(
			"tc-"+string(rune('a'+i)), "X",
		)))
	}
	gw := &scriptedGateway{rounds: rounds}
	l, _ := newRecorderLoop(t, gw, nil, WithMaxIterations(3))
	sess := NewSession("")

	err := l.Run(context.Background(), sess, "loop forever")
	require.Error(t, err)
	assert.Equal(t, StatusAborted, sess.Status())
	assert.Contains(t, sess.AbortCause(), "max iterations")
	assert.Equal(t, 3, gw.calls)
}

func TestCancellationStopsNewDispatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	registry := tools.NewRegistry()
	var ran []string
	def, err := tools.NewToolFromFunc("record", "records", func(in recordArgs) (string, error) {
		ran = append(ran, in.Label)
		if in.Label == "A" {
			cancel()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(*def))

	gw := &scriptedGateway{rounds: [][]events.Event{
		finalRound("",
			recordCall("tc-a", "A"),
			recordCall("tc-b", "B"),
		),
	}}
	l := New(
		WithGateway(gw),
		WithRegistry(registry),
		WithDispatcher(tools.NewDispatcher(registry, tools.DefaultConfig())),
	)
	sess := NewSession("")

	err = l.Run(ctx, sess, "go")
	require.Error(t, err)
	assert.Equal(t, []string{"A"}, ran, "no new dispatch may start after cancellation")
	assert.Equal(t, StatusAborted, sess.Status())
}
