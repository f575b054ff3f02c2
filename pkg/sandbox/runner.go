package sandbox

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// runOutput is the raw outcome of one spawned process.
type runOutput struct {
	stdout   string
	stderr   string
	exitCode int
}

// runner abstracts process execution so the executor can be tested without
// a docker daemon.
type runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) (runOutput, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (runOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	out := runOutput{
		stdout: stdout.String(),
		stderr: stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			out.exitCode = exitErr.ExitCode()
			return out, nil
		}
		log.Debug().Err(err).Str("command", name).Msg("sandbox: process failed to run")
		return out, err
	}

	return out, nil
}
