package toolbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/devagent/pkg/tools"
)

// Commit author identity written into the container. Fresh containers have
// no git config, and git refuses to commit without one.
const (
	gitUserName  = "devagent"
	gitUserEmail = "devagent@example.com"
)

// ConfigureGit sets the global commit author inside the container. Call it
// once after the sandbox starts, before any git_commit dispatch.
func (t *Toolbox) ConfigureGit(ctx context.Context) error {
	cmds := []string{
		fmt.Sprintf("git config --global user.name %s", quoteArg(gitUserName)),
		fmt.Sprintf("git config --global user.email %s", quoteArg(gitUserEmail)),
	}
	for _, cmd := range cmds {
		res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("configure git identity: %s", formatExecResult(res))
		}
	}
	return nil
}

type gitNoArgs struct{}

func (t *Toolbox) gitStatusTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_status",
		"Show staged, unstaged and untracked files in the project repository "+
			"inside the development container.",
		func(ctx context.Context, _ gitNoArgs) (string, error) {
			res, err := t.executor.Execute(ctx, t.handle, "git status --porcelain", t.timeout)
			if err != nil {
				return "", err
			}
			if res.ExitCode == 0 && strings.TrimSpace(res.Stdout) == "" {
				return "working tree clean", nil
			}
			return formatExecResult(res), nil
		})
}

func (t *Toolbox) gitBranchTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_branch",
		"Show the current branch and all available branches in the project "+
			"repository.",
		func(ctx context.Context, _ gitNoArgs) (string, error) {
			res, err := t.executor.Execute(ctx, t.handle, "git branch -a", t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

type gitCreateBranchInput struct {
	BranchName string `json:"branch_name" jsonschema:"required,description=Name of the new branch to create"`
}

func (t *Toolbox) gitCreateBranchTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_create_branch",
		"Create a new git branch for feature development and switch to it. "+
			"If the branch already exists it is checked out instead.",
		func(ctx context.Context, in gitCreateBranchInput) (string, error) {
			branch := quoteArg(in.BranchName)
			check, err := t.executor.Execute(ctx, t.handle, fmt.Sprintf("git branch --list %s", branch), t.timeout)
			if err != nil {
				return "", err
			}
			cmd := fmt.Sprintf("git checkout -b %s", branch)
			if strings.TrimSpace(check.Stdout) != "" {
				cmd = fmt.Sprintf("git checkout %s", branch)
			}
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

type gitAddFilesInput struct {
	Files string `json:"files" jsonschema:"required,description=Files to stage ('.' for everything or space-separated file names)"`
}

func (t *Toolbox) gitAddFilesTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_add_files",
		"Add files to the git staging area. Use '.' to add all files.",
		func(ctx context.Context, in gitAddFilesInput) (string, error) {
			res, err := t.executor.Execute(ctx, t.handle, fmt.Sprintf("git add %s", in.Files), t.timeout)
			if err != nil {
				return "", err
			}
			if res.ExitCode == 0 {
				return "files staged", nil
			}
			return formatExecResult(res), nil
		})
}

type gitCommitInput struct {
	Message string `json:"message" jsonschema:"required,description=Commit message describing the changes"`
}

func (t *Toolbox) gitCommitTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_commit",
		"Commit staged changes in the project repository.",
		func(ctx context.Context, in gitCommitInput) (string, error) {
			cmd := fmt.Sprintf("git commit -m %s", quoteArg(in.Message))
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}

func (t *Toolbox) gitPushBranchTool() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		"git_push_branch",
		"Push the current branch to origin, setting the upstream.",
		func(ctx context.Context, _ gitNoArgs) (string, error) {
			branch, err := t.executor.Execute(ctx, t.handle, "git rev-parse --abbrev-ref HEAD", t.timeout)
			if err != nil {
				return "", err
			}
			if branch.ExitCode != 0 {
				return "", fmt.Errorf("could not determine current branch: %s", formatExecResult(branch))
			}
			name := strings.TrimSpace(branch.Stdout)
			cmd := fmt.Sprintf("git push -u origin %s", quoteArg(name))
			res, err := t.executor.Execute(ctx, t.handle, cmd, t.timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
}
