package gateway

import (
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestMergerAccumulatesFragmentsByIndex(t *testing.T) {
	m := newToolCallMerger()

	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), ID: "tc-1", Function: go_openai.FunctionCall{Name: "run_", Arguments: `{"comm`}},
	})
	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), Function: go_openai.FunctionCall{Name: "command", Arguments: `and":"ls"}`}},
	})

	merged := m.GetToolCalls()
	require.Len(t, merged, 1)
	assert.Equal(t, "tc-1", merged[0].ID)
	assert.Equal(t, "run_command", merged[0].Function.Name)
	assert.Equal(t, `{"command":"ls"}`, merged[0].Function.Arguments)
}

func TestMergerKeepsEmissionOrderAcrossInterleavedChunks(t *testing.T) {
	m := newToolCallMerger()

	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), ID: "a", Function: go_openai.FunctionCall{Name: "first"}},
		{Index: intPtr(1), ID: "b", Function: go_openai.FunctionCall{Name: "second"}},
	})
	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(1), Function: go_openai.FunctionCall{Arguments: `{}`}},
		{Index: intPtr(0), Function: go_openai.FunctionCall{Arguments: `{}`}},
	})

	merged := m.GetToolCalls()
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "b", merged[1].ID)
}

func TestMergerLateIDUpdateWins(t *testing.T) {
	m := newToolCallMerger()

	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), Function: go_openai.FunctionCall{Name: "curl"}},
	})
	m.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), ID: "tc-late", Function: go_openai.FunctionCall{Arguments: `{}`}},
	})

	merged := m.GetToolCalls()
	require.Len(t, merged, 1)
	assert.Equal(t, "tc-late", merged[0].ID)
}
