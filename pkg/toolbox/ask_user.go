package toolbox

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/devagent/pkg/tools"
)

// AskUserToolName is the registry name of the user interaction tool. The
// agent loop watches for dispatches of this name to track when the session
// is blocked on the user.
const AskUserToolName = "ask_user"

// Prompter asks the user a question and blocks until an answer arrives.
type Prompter func(ctx context.Context, query string) (string, error)

type askUserInput struct {
	Query string `json:"query" jsonschema:"required,description=The question to ask the user"`
}

// NewAskUserTool builds the user interaction tool around a prompter. The
// prompter is injected so the tool stays independent of any particular
// terminal UI.
func NewAskUserTool(prompter Prompter) (*tools.ToolDefinition, error) {
	if prompter == nil {
		return nil, errors.New("prompter is nil")
	}
	return tools.NewToolFromFunc(
		AskUserToolName,
		"Ask the user to clarify their request or to make a decision. "+
			"Provide your question and it will be put to the user; their "+
			"answer is returned as the tool result.",
		func(ctx context.Context, in askUserInput) (string, error) {
			answer, err := prompter(ctx, in.Query)
			if err != nil {
				return "", errors.Wrap(err, "prompt user")
			}
			return answer, nil
		})
}
