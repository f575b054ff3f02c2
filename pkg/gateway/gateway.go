package gateway

import (
	"context"
	"time"

	"github.com/go-go-golems/devagent/pkg/conversation"
	"github.com/go-go-golems/devagent/pkg/events"
	"github.com/go-go-golems/devagent/pkg/tools"
)

// Request is one completion round: the rendered conversation plus the tool
// specs the model may call.
type Request struct {
	Messages []conversation.ModelMessage
	Tools    []tools.ToolDefinition
	Metadata events.EventMetadata
}

// Gateway wraps the language-model API call. StreamCompletion returns a
// finite, single-consumption event sequence: zero or more streaming events
// followed by exactly one terminal event (final, error or interrupt), after
// which the channel is closed. Each round requires a fresh invocation.
//
// Transient failures are retried inside the gateway with exponential
// backoff; the caller only ever sees a terminal error event once the retry
// budget is exhausted. Non-transient failures surface immediately.
type Gateway interface {
	StreamCompletion(ctx context.Context, req Request) <-chan events.Event
}

// RetryConfig bounds the gateway's retry behavior. There is no unbounded
// wait anywhere: attempts are counted explicitly and delays computed as
// BackoffBase * BackoffFactor^(attempt-1).
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BackoffBase:   time.Second,
		BackoffFactor: 2.0,
	}
}

// Backoff returns the delay to apply before the given retry attempt
// (attempt 1 is the first retry).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(c.BackoffBase)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffFactor
	}
	return time.Duration(d)
}
