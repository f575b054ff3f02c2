package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeChatMessage ContentType = "chat-message"
	ContentTypeToolResult  ContentType = "tool-result"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the model to invoke a named tool.
// Immutable once created; the ID is unique within a session.
type ToolCall struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Input json.RawMessage `json:"input" yaml:"input"`
}

// MessageContent is an interface for the different kinds of message payloads.
type MessageContent interface {
	ContentType() ContentType
	String() string
	View() string
}

// ChatMessageContent is a plain text turn. Assistant turns may additionally
// carry the tool calls emitted alongside the text, in emission order.
type ChatMessageContent struct {
	Role      Role       `json:"role" yaml:"role"`
	Text      string     `json:"text" yaml:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

func (c *ChatMessageContent) ContentType() ContentType {
	return ContentTypeChatMessage
}

func (c *ChatMessageContent) String() string {
	return c.Text
}

func (c *ChatMessageContent) View() string {
	text := strings.TrimRight(c.Text, "\n")
	if len(c.ToolCalls) > 0 {
		names := make([]string, 0, len(c.ToolCalls))
		for _, tc := range c.ToolCalls {
			names = append(names, tc.Name)
		}
		return fmt.Sprintf("[%s]: %s (tool calls: %s)", c.Role, text, strings.Join(names, ", "))
	}
	return fmt.Sprintf("[%s]: %s", c.Role, text)
}

var _ MessageContent = (*ChatMessageContent)(nil)

// ToolResultContent is the outcome of one tool call, paired by ToolID.
type ToolResultContent struct {
	ToolID  string `json:"tool_id" yaml:"tool_id"`
	Result  string `json:"result" yaml:"result"`
	IsError bool   `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

func (t *ToolResultContent) ContentType() ContentType {
	return ContentTypeToolResult
}

func (t *ToolResultContent) String() string {
	return fmt.Sprintf("ToolResultContent{ToolID: %s, IsError: %v, Result: %s}", t.ToolID, t.IsError, t.Result)
}

func (t *ToolResultContent) View() string {
	prefix := "result"
	if t.IsError {
		prefix = "error"
	}
	return fmt.Sprintf("[tool %s %s]: %s", t.ToolID, prefix, strings.TrimRight(t.Result, "\n"))
}

var _ MessageContent = (*ToolResultContent)(nil)

// Message is one unit of conversation history.
type Message struct {
	ID      uuid.UUID      `json:"id" yaml:"id"`
	Time    time.Time      `json:"time" yaml:"time"`
	Content MessageContent `json:"content" yaml:"content"`
}

func NewMessage(content MessageContent) *Message {
	return &Message{
		ID:      uuid.New(),
		Time:    time.Now(),
		Content: content,
	}
}

func NewUserMessage(text string) *Message {
	return NewMessage(&ChatMessageContent{Role: RoleUser, Text: text})
}

func NewSystemMessage(text string) *Message {
	return NewMessage(&ChatMessageContent{Role: RoleSystem, Text: text})
}

func NewAssistantMessage(text string, toolCalls ...ToolCall) *Message {
	return NewMessage(&ChatMessageContent{Role: RoleAssistant, Text: text, ToolCalls: toolCalls})
}

func NewToolResultMessage(toolID string, result string, isError bool) *Message {
	return NewMessage(&ToolResultContent{ToolID: toolID, Result: result, IsError: isError})
}
