package conversation

// ModelMessage is the provider-neutral, role-tagged projection of a turn,
// used as the exact input to the model gateway each round.
type ModelMessage struct {
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID pairs a tool role message with the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// RenderForModel projects the conversation into role-tagged messages. It is
// a pure projection with no side effects: the returned slice shares no
// mutable state with the manager.
func (m *Manager) RenderForModel() []ModelMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ModelMessage, 0, len(m.messages)+1)
	if m.systemPrompt != "" {
		out = append(out, ModelMessage{Role: RoleSystem, Text: m.systemPrompt})
	}

	for _, msg := range m.messages {
		switch content := msg.Content.(type) {
		case *ChatMessageContent:
			mm := ModelMessage{Role: content.Role, Text: content.Text}
			if len(content.ToolCalls) > 0 {
				mm.ToolCalls = make([]ToolCall, len(content.ToolCalls))
				copy(mm.ToolCalls, content.ToolCalls)
			}
			out = append(out, mm)
		case *ToolResultContent:
			out = append(out, ModelMessage{
				Role:       RoleTool,
				Text:       content.Result,
				ToolCallID: content.ToolID,
			})
		}
	}

	return out
}
