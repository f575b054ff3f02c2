package conversation

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts model tokens for a piece of text.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

type tiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTiktokenCounter returns a TokenCounter backed by the cl100k_base
// encoding.
func NewTiktokenCounter() (TokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "get cl100k_base codec")
	}
	return &tiktokenCounter{codec: codec}, nil
}

func (c *tiktokenCounter) CountTokens(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "encode text")
	}
	return len(ids), nil
}

// TruncateToBudget drops the oldest turns until the rendered conversation
// fits within maxTokens. The system prompt always stays, and a tool call is
// never dropped independently of its results: an assistant message that
// carries tool calls forms one segment together with the results that answer
// it, and segments are dropped whole.
func (m *Manager) TruncateToBudget(counter TokenCounter, maxTokens int) error {
	if counter == nil {
		return errors.New("token counter is nil")
	}
	if maxTokens <= 0 {
		return errors.Errorf("invalid token budget: %d", maxTokens)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	budget := maxTokens
	if m.systemPrompt != "" {
		n, err := counter.CountTokens(m.systemPrompt)
		if err != nil {
			return err
		}
		budget -= n
	}

	segments, err := m.segmentLocked(counter)
	if err != nil {
		return err
	}

	total := 0
	for _, seg := range segments {
		total += seg.tokens
	}
	if total <= budget {
		return nil
	}

	dropped := 0
	for len(segments) > 0 && total > budget {
		total -= segments[0].tokens
		dropped += len(segments[0].messages)
		segments = segments[1:]
	}

	kept := make([]*Message, 0, len(m.messages)-dropped)
	for _, seg := range segments {
		kept = append(kept, seg.messages...)
	}
	m.messages = kept

	log.Debug().
		Int("dropped_messages", dropped).
		Int("kept_messages", len(kept)).
		Int("budget", maxTokens).
		Msg("conversation: truncated to token budget")
	return nil
}

type segment struct {
	messages []*Message
	tokens   int
}

// segmentLocked groups messages so that an assistant message with tool calls
// and the results answering it always travel together.
func (m *Manager) segmentLocked(counter TokenCounter) ([]segment, error) {
	var segments []segment
	var current *segment
	open := map[string]bool{}

	flush := func() {
		if current != nil {
			segments = append(segments, *current)
			current = nil
		}
	}

	for _, msg := range m.messages {
		n, err := counter.CountTokens(msg.Content.String())
		if err != nil {
			return nil, err
		}

		switch content := msg.Content.(type) {
		case *ToolResultContent:
			if current != nil && open[content.ToolID] {
				delete(open, content.ToolID)
				current.messages = append(current.messages, msg)
				current.tokens += n
				if len(open) == 0 {
					flush()
				}
				continue
			}
			segments = append(segments, segment{messages: []*Message{msg}, tokens: n})

		case *ChatMessageContent:
			flush()
			if len(content.ToolCalls) > 0 {
				current = &segment{messages: []*Message{msg}, tokens: n}
				open = map[string]bool{}
				for _, tc := range content.ToolCalls {
					open[tc.ID] = true
				}
				continue
			}
			segments = append(segments, segment{messages: []*Message{msg}, tokens: n})
		}
	}
	flush()

	return segments, nil
}
