package conversation

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// transcriptMessage is the flat YAML representation of one turn.
type transcriptMessage struct {
	ID   string      `yaml:"id"`
	Time time.Time   `yaml:"time"`
	Kind ContentType `yaml:"kind"`

	Role      string     `yaml:"role,omitempty"`
	Text      string     `yaml:"text,omitempty"`
	ToolCalls []ToolCall `yaml:"tool_calls,omitempty"`

	ToolID  string `yaml:"tool_id,omitempty"`
	Result  string `yaml:"result,omitempty"`
	IsError bool   `yaml:"is_error,omitempty"`
}

type transcript struct {
	SystemPrompt string              `yaml:"system_prompt,omitempty"`
	Messages     []transcriptMessage `yaml:"messages"`
}

// SaveTranscript writes the conversation as YAML, suitable for later
// inspection or reloading into a fresh manager.
func (m *Manager) SaveTranscript(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := transcript{SystemPrompt: m.systemPrompt}
	for _, msg := range m.messages {
		tm := transcriptMessage{
			ID:   msg.ID.String(),
			Time: msg.Time,
		}
		switch content := msg.Content.(type) {
		case *ChatMessageContent:
			tm.Kind = ContentTypeChatMessage
			tm.Role = string(content.Role)
			tm.Text = content.Text
			tm.ToolCalls = content.ToolCalls
		case *ToolResultContent:
			tm.Kind = ContentTypeToolResult
			tm.ToolID = content.ToolID
			tm.Result = content.Result
			tm.IsError = content.IsError
		}
		t.Messages = append(t.Messages, tm)
	}

	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return errors.Wrap(enc.Encode(t), "encode transcript")
}

// LoadTranscript reads a YAML transcript into a fresh manager, replaying
// each turn through Append so the pairing invariant is re-validated.
func LoadTranscript(r io.Reader) (*Manager, error) {
	var t transcript
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(err, "decode transcript")
	}

	m := NewManager(t.SystemPrompt)
	for _, tm := range t.Messages {
		msg, err := tm.toMessage()
		if err != nil {
			return nil, err
		}
		if err := m.Append(msg); err != nil {
			return nil, errors.Wrap(err, "replay transcript")
		}
	}
	return m, nil
}

func (tm transcriptMessage) toMessage() (*Message, error) {
	id, err := uuid.Parse(tm.ID)
	if err != nil {
		id = uuid.New()
	}

	msg := &Message{ID: id, Time: tm.Time}
	switch tm.Kind {
	case ContentTypeChatMessage:
		msg.Content = &ChatMessageContent{
			Role:      Role(tm.Role),
			Text:      tm.Text,
			ToolCalls: tm.ToolCalls,
		}
	case ContentTypeToolResult:
		msg.Content = &ToolResultContent{
			ToolID:  tm.ToolID,
			Result:  tm.Result,
			IsError: tm.IsError,
		}
	default:
		return nil, errors.Errorf("unknown transcript message kind: %s", tm.Kind)
	}
	return msg, nil
}

// MarshalYAML flattens json.RawMessage inputs into plain YAML values so
// transcripts stay readable.
func (tc ToolCall) MarshalYAML() (interface{}, error) {
	var input interface{}
	if len(tc.Input) > 0 {
		if err := json.Unmarshal(tc.Input, &input); err != nil {
			input = string(tc.Input)
		}
	}
	return map[string]interface{}{
		"id":    tc.ID,
		"name":  tc.Name,
		"input": input,
	}, nil
}

func (tc *ToolCall) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID    string      `yaml:"id"`
		Name  string      `yaml:"name"`
		Input interface{} `yaml:"input"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	tc.ID = raw.ID
	tc.Name = raw.Name
	if raw.Input != nil {
		b, err := json.Marshal(raw.Input)
		if err != nil {
			return errors.Wrap(err, "encode tool call input")
		}
		tc.Input = b
	}
	return nil
}
