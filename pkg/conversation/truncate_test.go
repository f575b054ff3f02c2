package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter charges one token per byte of text.
type fakeCounter struct{}

func (fakeCounter) CountTokens(text string) (int, error) {
	return len(text), nil
}

func TestTruncateDropsOldestFirst(t *testing.T) {
	m := NewManager("")

	require.NoError(t, m.Append(NewUserMessage("aaaaaaaaaa")))
	require.NoError(t, m.Append(NewAssistantMessage("bbbbbbbbbb")))
	require.NoError(t, m.Append(NewUserMessage("cccccccccc")))

	require.NoError(t, m.TruncateToBudget(fakeCounter{}, 20))

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "bbbbbbbbbb", msgs[0].Content.(*ChatMessageContent).Text)
	assert.Equal(t, "cccccccccc", msgs[1].Content.(*ChatMessageContent).Text)
}

func TestTruncateNeverSplitsToolCallPairs(t *testing.T) {
	m := NewManager("")

	require.NoError(t, m.Append(NewUserMessage("old old old old")))
	require.NoError(t, m.Append(NewAssistantMessage("calling", call("tc-1"))))
	require.NoError(t, m.Append(NewToolResultMessage("tc-1", "a long long long tool result", false)))
	require.NoError(t, m.Append(NewAssistantMessage("short")))

	// A budget that fits the tool segment only partially must drop the
	// assistant message and its result together.
	require.NoError(t, m.TruncateToBudget(fakeCounter{}, 10))

	for _, msg := range m.Messages() {
		if content, ok := msg.Content.(*ChatMessageContent); ok {
			assert.Empty(t, content.ToolCalls, "surviving assistant message must not have orphaned calls")
		}
		_, isResult := msg.Content.(*ToolResultContent)
		assert.False(t, isResult, "tool result must not survive without its call")
	}
}

func TestTruncateKeepsSystemPrompt(t *testing.T) {
	m := NewManager("system prompt that is fairly long")

	require.NoError(t, m.Append(NewUserMessage("some user text")))
	require.NoError(t, m.TruncateToBudget(fakeCounter{}, len(m.SystemPrompt())+2))

	assert.Equal(t, "system prompt that is fairly long", m.SystemPrompt())
	rendered := m.RenderForModel()
	require.NotEmpty(t, rendered)
	assert.Equal(t, RoleSystem, rendered[0].Role)
}

func TestTruncateNoopWithinBudget(t *testing.T) {
	m := NewManager("")

	require.NoError(t, m.Append(NewUserMessage("hi")))
	require.NoError(t, m.Append(NewAssistantMessage("hello")))

	require.NoError(t, m.TruncateToBudget(fakeCounter{}, 1000))
	assert.Equal(t, 2, m.Len())
}

func TestTruncateRejectsInvalidBudget(t *testing.T) {
	m := NewManager("")
	assert.Error(t, m.TruncateToBudget(fakeCounter{}, 0))
	assert.Error(t, m.TruncateToBudget(nil, 100))
}
