package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnresolvedToolCalls is returned when an assistant message is
	// appended while a prior tool call still lacks a result.
	ErrUnresolvedToolCalls = errors.New("assistant message appended with unresolved tool calls")
	// ErrUnknownToolCallID is returned when a tool result does not match any
	// pending tool call.
	ErrUnknownToolCallID = errors.New("tool result does not match a pending tool call")
	// ErrDuplicateToolResult is returned when a pending tool call already
	// received a result.
	ErrDuplicateToolResult = errors.New("tool call already has a result")
	// ErrDuplicateToolCallID is returned when an assistant message reuses a
	// tool call id already seen in this conversation.
	ErrDuplicateToolCallID = errors.New("tool call id already used in this conversation")
)

// Manager is the ordered log of turns for one session: the single source of
// truth fed to the model each round. Turns are strictly append-ordered and
// never reordered or mutated after append. The agent loop is the only
// writer; the mutex guards concurrent readers (UI, transcript export).
type Manager struct {
	mu sync.RWMutex

	systemPrompt string
	messages     []*Message

	// pending holds tool calls awaiting a result, in emission order.
	pending []ToolCall
	// seenToolCallIDs tracks every tool call id ever appended.
	seenToolCallIDs map[string]bool
}

func NewManager(systemPrompt string) *Manager {
	return &Manager{
		systemPrompt:    systemPrompt,
		seenToolCallIDs: map[string]bool{},
	}
}

// Append adds a turn to the conversation, enforcing the tool call pairing
// invariant: every tool call in an assistant message must have exactly one
// result before the next assistant message is appended.
func (m *Manager) Append(msg *Message) error {
	if msg == nil || msg.Content == nil {
		return errors.New("cannot append empty message")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch content := msg.Content.(type) {
	case *ChatMessageContent:
		if content.Role == RoleAssistant && len(m.pending) > 0 {
			return errors.Wrapf(ErrUnresolvedToolCalls, "%d pending", len(m.pending))
		}
		for _, tc := range content.ToolCalls {
			if m.seenToolCallIDs[tc.ID] {
				return errors.Wrap(ErrDuplicateToolCallID, tc.ID)
			}
		}
		for _, tc := range content.ToolCalls {
			m.seenToolCallIDs[tc.ID] = true
			m.pending = append(m.pending, tc)
		}

	case *ToolResultContent:
		idx := -1
		for i, tc := range m.pending {
			if tc.ID == content.ToolID {
				idx = i
				break
			}
		}
		if idx < 0 {
			if m.seenToolCallIDs[content.ToolID] {
				return errors.Wrap(ErrDuplicateToolResult, content.ToolID)
			}
			return errors.Wrap(ErrUnknownToolCallID, content.ToolID)
		}
		m.pending = append(m.pending[:idx], m.pending[idx+1:]...)

	default:
		return errors.Errorf("unsupported message content type: %s", msg.Content.ContentType())
	}

	m.messages = append(m.messages, msg)
	log.Debug().
		Str("content_type", string(msg.Content.ContentType())).
		Int("conversation_length", len(m.messages)).
		Int("pending_tool_calls", len(m.pending)).
		Msg("conversation: appended message")
	return nil
}

// PendingToolCalls returns the tool calls still awaiting a result, in the
// order the model emitted them.
func (m *Manager) PendingToolCalls() []ToolCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ToolCall, len(m.pending))
	copy(out, m.pending)
	return out
}

// Messages returns a copy of the conversation log.
func (m *Manager) Messages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of appended turns, excluding the system prompt.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// SystemPrompt returns the system prompt the conversation was created with.
func (m *Manager) SystemPrompt() string {
	return m.systemPrompt
}
