package toolbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/devagent/pkg/tools"
)

type runCommandInput struct {
	Command string `json:"command" jsonschema:"required,description=The shell command to run inside the development container"`
}

func (t *Toolbox) runCommandTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"run_command",
		"Run a shell command inside the development container and wait for it "+
			"to finish. The project directory is mounted at /app and port 8888 "+
			"is exposed to the host. Use tmux_command for servers and other "+
			"processes that must outlive the call.",
		func(ctx context.Context, in runCommandInput) (string, error) {
			res, err := t.executor.Execute(ctx, t.handle, in.Command, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

type tmuxCommandInput struct {
	Command string `json:"command" jsonschema:"required,description=The command to start inside the detached tmux session"`
	Session string `json:"session,omitempty" jsonschema:"description=Name of the tmux session (defaults to main)"`
}

// tmuxCommandTool starts long-lived processes. Execute would otherwise hold
// the turn open until the per-command timeout kills the process.
func (t *Toolbox) tmuxCommandTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"tmux_command",
		"Start a command in a detached tmux session inside the development "+
			"container and return immediately. Use this for http servers and "+
			"other long-running processes; the session keeps them alive after "+
			"the call returns. Inspect them later with run_command "+
			"(e.g. tmux capture-pane -p -t main).",
		func(ctx context.Context, in tmuxCommandInput) (string, error) {
			session := in.Session
			if session == "" {
				session = "main"
			}
			// The trailing bash keeps the session alive when the command
			// exits, so its output stays inspectable.
			cmd := fmt.Sprintf("tmux new-session -d -s %s %s",
				quoteArg(session), quoteArg(in.Command+"; bash"))
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return formatExecResult(res), nil
			}
			return fmt.Sprintf("started %q in tmux session %s", in.Command, session), nil
		})
}

type upsertFileInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=The absolute path of the file to create or update"`
	Content  string `json:"content" jsonschema:"required,description=The full content of the file"`
}

func (t *Toolbox) upsertFileTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"upsert_file",
		"Create or fully replace a file inside the development container. "+
			"Parent directories are created as needed.",
		func(ctx context.Context, in upsertFileInput) (string, error) {
			if err := t.executor.UpsertFile(ctx, t.handle, in.FilePath, in.Content); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.FilePath), nil
		})
}

type readFileInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=The path of the file to read"`
	Offset   int    `json:"offset,omitempty" jsonschema:"description=Line number to start reading from (1-indexed)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=Maximum number of lines to read"`
}

func (t *Toolbox) readFileTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"read_file",
		"Read a file from the development container, with line numbers. "+
			"Use offset and limit to read a slice of a large file.",
		func(ctx context.Context, in readFileInput) (string, error) {
			offset := in.Offset
			if offset < 1 {
				offset = 1
			}
			cmd := fmt.Sprintf("cat -n %s", quoteArg(in.FilePath))
			if in.Limit > 0 {
				cmd = fmt.Sprintf("tail -n +%d %s | head -n %d | cat -n", offset, quoteArg(in.FilePath), in.Limit)
			} else if offset > 1 {
				cmd = fmt.Sprintf("tail -n +%d %s | cat -n", offset, quoteArg(in.FilePath))
			}
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

type listDirectoryInput struct {
	DirectoryPath string `json:"directory_path" jsonschema:"required,description=The path of the directory to list"`
	ShowHidden    bool   `json:"show_hidden,omitempty" jsonschema:"description=Whether to include hidden entries"`
}

func (t *Toolbox) listDirectoryTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"list_directory",
		"List the contents of a directory in the development container.",
		func(ctx context.Context, in listDirectoryInput) (string, error) {
			flags := "-l"
			if in.ShowHidden {
				flags = "-la"
			}
			cmd := fmt.Sprintf("ls %s %s", flags, quoteArg(in.DirectoryPath))
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

type searchFilesInput struct {
	Pattern     string `json:"pattern" jsonschema:"required,description=The text pattern to search for (basic regex)"`
	FilePattern string `json:"file_pattern,omitempty" jsonschema:"description=Glob limiting the search to matching file names (e.g. *.go)"`
	Directory   string `json:"directory,omitempty" jsonschema:"description=Directory to search in (defaults to the project root)"`
}

func (t *Toolbox) searchFilesTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"search_files",
		"Search for a text pattern across files in the development container. "+
			"Results are file:line:content matches, capped at 50 lines.",
		func(ctx context.Context, in searchFilesInput) (string, error) {
			dir := in.Directory
			if dir == "" {
				dir = "."
			}
			cmd := fmt.Sprintf("grep -rn %s %s", quoteArg(in.Pattern), quoteArg(dir))
			if in.FilePattern != "" {
				cmd += fmt.Sprintf(" --include=%s", quoteArg(in.FilePattern))
			}
			cmd += " | head -n 50"
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			// grep exits 1 on no matches
			if res.ExitCode == 1 && strings.TrimSpace(res.Stdout) == "" {
				return fmt.Sprintf("no matches found for pattern %q in %s", in.Pattern, dir), nil
			}
			return formatExecResult(res), nil
		})
}

type searchAndReplaceInput struct {
	Pattern     string `json:"pattern" jsonschema:"required,description=The literal text to search for"`
	Replacement string `json:"replacement" jsonschema:"required,description=The text to replace every occurrence with"`
	Directory   string `json:"directory" jsonschema:"required,description=The directory in which to perform the replacement"`
}

func (t *Toolbox) searchAndReplaceTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"search_and_replace",
		"Replace every occurrence of a literal text pattern across the files "+
			"of a directory in the development container.",
		func(ctx context.Context, in searchAndReplaceInput) (string, error) {
			// Fixed-string match and sed with | as delimiter so slashes in
			// patterns survive. Inputs with | fall back to an error result.
			if strings.ContainsAny(in.Pattern+in.Replacement, "|\n") {
				return "", fmt.Errorf("pattern and replacement must not contain '|' or newlines")
			}
			cmd := fmt.Sprintf(
				"grep -rlF %s %s | xargs -r sed -i 's|%s|%s|g'",
				quoteArg(in.Pattern), quoteArg(in.Directory),
				sedEscape(in.Pattern), sedEscape(in.Replacement),
			)
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return formatExecResult(res), nil
			}
			return "search and replace completed successfully", nil
		})
}

type editFileInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=The path of the file to edit"`
	Content  string `json:"content" jsonschema:"required,description=The content to append to the file"`
}

func (t *Toolbox) editFileTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"edit_file",
		"Append content to a file in the development container, creating it "+
			"if it does not exist. Use upsert_file to replace a file wholesale.",
		func(ctx context.Context, in editFileInput) (string, error) {
			cmd := fmt.Sprintf("printf %%s %s >> %s", quoteArg(in.Content), quoteArg(in.FilePath))
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return "", fmt.Errorf("edit failed: %s", formatExecResult(res))
			}
			return "file edited successfully", nil
		})
}

// sedEscape escapes the characters sed treats specially inside an
// s|pattern|replacement|g expression built from literal text.
func sedEscape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`&`, `\&`,
		`[`, `\[`,
		`]`, `\]`,
		`.`, `\.`,
		`*`, `\*`,
		`^`, `\^`,
		`$`, `\$`,
		`'`, `'\''`,
	)
	return r.Replace(s)
}
