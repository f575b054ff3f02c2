package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/devagent/pkg/events"
)

// errInterrupted marks a stream cut short by context cancellation. It is
// terminal and never retried.
var errInterrupted = errors.New("stream interrupted")

// OpenAIGateway implements Gateway on the OpenAI chat completions API.
type OpenAIGateway struct {
	client    *go_openai.Client
	model     string
	maxTokens int
	retry     RetryConfig

	// attempt is swapped out in tests to exercise the retry loop without a
	// live API.
	attempt func(ctx context.Context, req Request, emit func(events.Event)) error
}

type Option func(*OpenAIGateway)

func WithModel(model string) Option {
	return func(g *OpenAIGateway) { g.model = model }
}

func WithMaxTokens(maxTokens int) Option {
	return func(g *OpenAIGateway) { g.maxTokens = maxTokens }
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(g *OpenAIGateway) { g.retry = cfg }
}

func NewOpenAIGateway(apiKey string, baseURL string, opts ...Option) *OpenAIGateway {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	g := &OpenAIGateway{
		client:    go_openai.NewClientWithConfig(config),
		model:     go_openai.GPT4,
		maxTokens: 8000,
		retry:     DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.attempt = g.streamOnce
	return g
}

// StreamCompletion starts one completion round. The returned channel yields
// streaming events and is closed after a terminal final/error/interrupt
// event. Each retry attempt begins with a fresh start event, so consumers
// reset any accumulation when they see one.
func (g *OpenAIGateway) StreamCompletion(ctx context.Context, req Request) <-chan events.Event {
	ch := make(chan events.Event)

	go func() {
		defer close(ch)

		emit := func(ev events.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		var lastErr error
		for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := g.retry.Backoff(attempt)
				log.Debug().
					Int("attempt", attempt).
					Dur("backoff", delay).
					Err(lastErr).
					Msg("gateway: retrying after transient failure")
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					emit(events.NewInterruptEvent(req.Metadata, ""))
					return
				}
			}

			err := g.attempt(ctx, req, emit)
			if err == nil {
				return
			}
			if errors.Is(err, errInterrupted) {
				return
			}

			kind := classifyError(err)
			if kind == events.ErrorKindPermanent {
				log.Error().Err(err).Msg("gateway: permanent API failure")
				emit(events.NewErrorEvent(req.Metadata, events.ErrorKindPermanent, err))
				return
			}
			lastErr = err
		}

		log.Error().Err(lastErr).Int("max_retries", g.retry.MaxRetries).Msg("gateway: retry budget exhausted")
		emit(events.NewErrorEvent(req.Metadata, events.ErrorKindTransient, lastErr))
	}()

	return ch
}

// streamOnce performs a single streaming API call, translating provider
// chunks into gateway events.
func (g *OpenAIGateway) streamOnce(ctx context.Context, req Request, emit func(events.Event)) error {
	apiReq, err := g.makeRequest(req)
	if err != nil {
		// A request we cannot even construct will not improve with retries.
		return &permanentError{cause: err}
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, *apiReq)
	if err != nil {
		return errors.Wrap(err, "create completion stream")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Debug().Err(err).Msg("gateway: failed to close stream")
		}
	}()

	emit(events.NewStartEvent(req.Metadata))

	completion := ""
	merger := newToolCallMerger()
	started := map[int]string{}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("gateway: streaming cancelled by context")
			emit(events.NewInterruptEvent(req.Metadata, completion))
			return errInterrupted
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				emit(events.NewInterruptEvent(req.Metadata, completion))
				return errInterrupted
			}
			return errors.Wrap(err, "receive stream chunk")
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		if delta.Content != "" {
			completion += delta.Content
			emit(events.NewPartialEvent(req.Metadata, delta.Content, completion))
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if _, seen := started[index]; !seen {
				started[index] = tc.ID
				emit(events.NewToolCallStartEvent(req.Metadata, tc.ID, tc.Function.Name))
			}
			if tc.Function.Arguments != "" {
				emit(events.NewToolCallDeltaEvent(req.Metadata, started[index], tc.Function.Arguments))
			}
		}
		merger.AddToolCalls(delta.ToolCalls)
	}

	merged := merger.GetToolCalls()
	eventCalls := make([]events.ToolCall, 0, len(merged))
	for _, tc := range merged {
		call := events.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: tc.Function.Arguments}
		eventCalls = append(eventCalls, call)
		emit(events.NewToolCallDoneEvent(req.Metadata, call))
	}

	log.Debug().
		Int("completion_length", len(completion)).
		Int("tool_call_count", len(eventCalls)).
		Msg("gateway: stream complete")
	emit(events.NewFinalEvent(req.Metadata, completion, eventCalls))
	return nil
}

func (g *OpenAIGateway) makeRequest(req Request) (*go_openai.ChatCompletionRequest, error) {
	messages := make([]go_openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := go_openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Text,
		}
		if m.ToolCallID != "" {
			msg.Role = go_openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
				ID:   tc.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Input),
				},
			})
		}
		messages = append(messages, msg)
	}

	var apiTools []go_openai.Tool
	for _, def := range req.Tools {
		params, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal parameters for tool %s", def.Name)
		}
		apiTools = append(apiTools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}

	return &go_openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages,
		Tools:     apiTools,
		MaxTokens: g.maxTokens,
		Stream:    true,
	}, nil
}

// permanentError wraps a failure that must not be retried.
type permanentError struct {
	cause error
}

func (e *permanentError) Error() string { return e.cause.Error() }
func (e *permanentError) Unwrap() error { return e.cause }

// classifyError sorts failures into the retryable and non-retryable kinds.
// Rate limits, 5xx responses and network faults are transient; malformed
// requests and auth failures are permanent.
func classifyError(err error) events.ErrorKind {
	var pe *permanentError
	if errors.As(err, &pe) {
		return events.ErrorKindPermanent
	}

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return events.ErrorKindTransient
	}

	// Unclassified transport-level failures get the benefit of the doubt.
	return events.ErrorKindTransient
}

func classifyStatus(status int) events.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return events.ErrorKindTransient
	case status >= 500:
		return events.ErrorKindTransient
	case status == 0:
		return events.ErrorKindTransient
	default:
		return events.ErrorKindPermanent
	}
}

var _ Gateway = (*OpenAIGateway)(nil)
