package ui

import (
	"context"
	"os"

	"github.com/pkg/errors"
	input "github.com/tcnksm/go-input"
)

// PromptUser asks the user a question on the terminal and blocks until they
// answer. Cancellation of the context after the prompt returns is the
// loop's concern, not ours.
func PromptUser(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ui := &input.UI{
		Writer: os.Stdout,
		Reader: os.Stdin,
	}
	answer, err := ui.Ask(query, &input.Options{
		Required:  true,
		HideOrder: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "read user answer")
	}
	return answer, nil
}
