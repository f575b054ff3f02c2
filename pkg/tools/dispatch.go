package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher validates and executes tool calls against a registry. Any
// fault — unknown tool, bad arguments, executor error, panic — is
// normalized into an error-flagged ToolResult so a failing tool can never
// crash the loop.
type Dispatcher struct {
	registry *Registry
	config   Config
}

func NewDispatcher(registry *Registry, config Config) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		config:   config,
	}
}

// Dispatch executes a single tool call. The returned result carries the
// call's id; errors reach the model as data.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) ToolResult {
	start := time.Now()

	errResult := func(msg string) ToolResult {
		return ToolResult{ID: call.ID, Error: msg, Duration: time.Since(start)}
	}

	def, err := d.registry.Resolve(call.Name)
	if err != nil {
		log.Debug().Str("tool", call.Name).Msg("tools: dispatch of unknown tool")
		return errResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if !d.config.IsToolAllowed(call.Name) {
		return errResult(fmt.Sprintf("tool not allowed: %s", call.Name))
	}

	if err := ValidateArguments(def, call.Arguments); err != nil {
		log.Debug().Str("tool", call.Name).Err(err).Msg("tools: argument validation failed")
		return errResult(err.Error())
	}

	execCtx := ctx
	if d.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.config.ExecutionTimeout)
		defer cancel()
	}

	output, err := d.execute(execCtx, def, call.Arguments)
	if err != nil {
		log.Debug().Str("tool", call.Name).Err(err).Msg("tools: execution failed")
		return errResult(err.Error())
	}

	log.Debug().
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Dur("duration", time.Since(start)).
		Msg("tools: dispatched")
	return ToolResult{ID: call.ID, Result: output, Duration: time.Since(start)}
}

// DispatchAll executes multiple tool calls sequentially, in the order they
// were emitted. Ordering is part of the contract: later calls may depend on
// filesystem state produced by earlier ones in the same turn.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.Dispatch(ctx, call))
	}
	return results
}

func (d *Dispatcher) execute(ctx context.Context, def *ToolDefinition, args []byte) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("tool", def.Name).Interface("panic", r).Msg("tools: executor panicked")
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Function.Execute(ctx, args)
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
