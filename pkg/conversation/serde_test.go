package conversation

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptRoundtrip(t *testing.T) {
	m := NewManager("be helpful")

	require.NoError(t, m.Append(NewUserMessage("list the files")))
	require.NoError(t, m.Append(NewAssistantMessage("on it", call("tc-1"))))
	require.NoError(t, m.Append(NewToolResultMessage("tc-1", "main.go\ngo.mod", false)))
	require.NoError(t, m.Append(NewAssistantMessage("two files: main.go and go.mod")))

	var buf bytes.Buffer
	require.NoError(t, m.SaveTranscript(&buf))

	loaded, err := LoadTranscript(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.SystemPrompt(), loaded.SystemPrompt())
	require.Equal(t, m.Len(), loaded.Len())

	orig := m.RenderForModel()
	replayed := loaded.RenderForModel()
	require.Equal(t, len(orig), len(replayed))
	for i := range orig {
		assert.Equal(t, orig[i].Role, replayed[i].Role)
		assert.Equal(t, orig[i].Text, replayed[i].Text)
		assert.Equal(t, orig[i].ToolCallID, replayed[i].ToolCallID)
		require.Equal(t, len(orig[i].ToolCalls), len(replayed[i].ToolCalls))
		for j := range orig[i].ToolCalls {
			assert.Equal(t, orig[i].ToolCalls[j].ID, replayed[i].ToolCalls[j].ID)
			assert.Equal(t, orig[i].ToolCalls[j].Name, replayed[i].ToolCalls[j].Name)
			assert.JSONEq(t, string(orig[i].ToolCalls[j].Input), string(replayed[i].ToolCalls[j].Input))
		}
	}
}

func TestLoadTranscriptRevalidatesPairing(t *testing.T) {
	// A transcript with a result answering no call must fail to load.
	broken := `system_prompt: ""
messages:
  - id: 1e2a3f40-0000-0000-0000-000000000001
    kind: chat-message
    role: user
    text: hello
  - id: 1e2a3f40-0000-0000-0000-000000000002
    kind: tool-result
    tool_id: tc-missing
    result: orphaned
`
	_, err := LoadTranscript(bytes.NewBufferString(broken))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownToolCallID))
}
