package toolbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/devagent/pkg/sandbox"
	"github.com/go-go-golems/devagent/pkg/tools"
)

// Toolbox builds the development tool set on top of one sandbox
// environment. All commands run inside the container; only fetch_url talks
// to the network from the host.
type Toolbox struct {
	executor sandbox.Executor
	handle   *sandbox.Handle
	timeout  time.Duration
}

type Option func(*Toolbox)

// WithTimeout overrides the per-command execution timeout (default 60s).
func WithTimeout(d time.Duration) Option {
	return func(t *Toolbox) { t.timeout = d }
}

func New(executor sandbox.Executor, handle *sandbox.Handle, opts ...Option) *Toolbox {
	t := &Toolbox{
		executor: executor,
		handle:   handle,
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// RegisterAll registers every sandbox tool plus the host-side web tool.
func (t *Toolbox) RegisterAll(registry *tools.Registry) error {
	factories := []func() (*tools.ToolDefinition, error){
		t.runCommandTool,
		t.tmuxCommandTool,
		t.upsertFileTool,
		t.readFileTool,
		t.listDirectoryTool,
		t.searchFilesTool,
		t.searchAndReplaceTool,
		t.editFileTool,
		t.gitStatusTool,
		t.gitBranchTool,
		t.gitCreateBranchTool,
		t.gitAddFilesTool,
		t.gitCommitTool,
		t.gitPushBranchTool,
		t.curlTool,
		fetchURLTool,
	}
	for _, factory := range factories {
		def, err := factory()
		if err != nil {
			return errors.Wrap(err, "build tool definition")
		}
		if err := registry.Register(*def); err != nil {
			return errors.Wrapf(err, "register tool %s", def.Name)
		}
	}
	return nil
}

// formatExecResult renders a command outcome the way the model reads it. A
// non-zero exit code is reported inline, not as a tool error.
func formatExecResult(res *sandbox.ExecResult) string {
	var b strings.Builder
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "command failed with exit code %d\n", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "" {
		b.WriteString(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			b.WriteString("\n")
		}
	}
	if strings.TrimSpace(res.Stderr) != "" {
		b.WriteString("STDERR:\n")
		b.WriteString(res.Stderr)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return strings.TrimRight(b.String(), "\n")
}

// quoteArg single-quotes a value for interpolation into a shell command.
func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
