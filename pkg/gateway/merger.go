package gateway

import (
	"sort"

	go_openai "github.com/sashabaranov/go-openai"
)

// toolCallMerger accumulates streamed tool call fragments, keyed by the
// index the provider uses to correlate chunks of the same call.
type toolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
	order     []int
}

func newToolCallMerger() *toolCallMerger {
	return &toolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
	}
}

func (tcm *toolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := tcm.toolCalls[index]; found {
			if call.ID != "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			tcm.toolCalls[index] = existing
		} else {
			tcm.toolCalls[index] = call
			tcm.order = append(tcm.order, index)
		}
	}
}

// GetToolCalls returns the merged calls in emission order.
func (tcm *toolCallMerger) GetToolCalls() []go_openai.ToolCall {
	order := make([]int, len(tcm.order))
	copy(order, tcm.order)
	sort.Ints(order)

	result := make([]go_openai.ToolCall, 0, len(order))
	for _, index := range order {
		result = append(result, tcm.toolCalls[index])
	}
	return result
}
