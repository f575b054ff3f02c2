package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultImage is a development image with git preinstalled.
	DefaultImage = "devagent-sandbox:latest"
	// containerWorkdir is where the host project directory is mounted.
	containerWorkdir = "/app"
)

// DockerExecutor drives a long-lived docker container through the docker
// CLI. The container mounts the host workdir at /app and exposes port 8888
// for ad-hoc servers the model may start.
type DockerExecutor struct {
	mu sync.Mutex

	run     runner
	image   string
	name    string
	workdir string

	handle *Handle
}

type DockerOption func(*DockerExecutor)

func WithImage(image string) DockerOption {
	return func(e *DockerExecutor) { e.image = image }
}

func WithWorkdir(dir string) DockerOption {
	return func(e *DockerExecutor) { e.workdir = dir }
}

func withRunner(r runner) DockerOption {
	return func(e *DockerExecutor) { e.run = r }
}

// NewDockerExecutor creates an executor for the container identified by
// name. The name doubles as the session's environment identifier.
func NewDockerExecutor(name string, opts ...DockerOption) *DockerExecutor {
	e := &DockerExecutor{
		run:   execRunner{},
		image: DefaultImage,
		name:  name,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start tears down any container with the session's identifier and creates
// a fresh one, preventing stale state bugs across restarts. If this
// executor already holds a running handle, that handle is stopped first so
// no orphaned environments remain.
func (e *DockerExecutor) Start(ctx context.Context) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil && e.handle.State() == StateRunning {
		log.Debug().Str("container", e.name).Msg("sandbox: stopping prior handle before restart")
		e.removeContainer(ctx)
		e.handle.setState(StateStopped)
	}

	handle := newHandle(e.name)
	handle.setState(StateStarting)
	e.handle = handle

	// Idempotent by name: remove any leftover container from a previous
	// process before creating ours.
	e.removeContainer(ctx)

	args := []string{
		"run", "-d",
		"--name", e.name,
		"-p", "8888:8888",
		"-w", containerWorkdir,
	}
	if e.workdir != "" {
		args = append(args, "-v", fmt.Sprintf("%s:%s", e.workdir, containerWorkdir))
	}
	args = append(args, e.image, "tail", "-f", "/dev/null")

	out, err := e.run.Run(ctx, nil, "docker", args...)
	if err != nil {
		handle.setState(StateFailed)
		return nil, newError(ErrorKindStartupFailure, e.name, err, "docker run failed")
	}
	if out.exitCode != 0 {
		handle.setState(StateFailed)
		return nil, newError(ErrorKindStartupFailure, e.name, nil, "docker run exited %d: %s", out.exitCode, strings.TrimSpace(out.stderr))
	}

	running, err := e.isRunning(ctx)
	if err != nil || !running {
		handle.setState(StateFailed)
		return nil, newError(ErrorKindStartupFailure, e.name, err, "container did not reach running state")
	}

	handle.setState(StateRunning)
	log.Info().Str("container", e.name).Str("image", e.image).Msg("sandbox: started")
	return handle, nil
}

// Execute runs a shell command inside the container. The timeout bounds the
// docker exec process only; on expiry the container itself stays usable.
func (e *DockerExecutor) Execute(ctx context.Context, handle *Handle, command string, timeout time.Duration) (*ExecResult, error) {
	if err := e.checkHandle(handle); err != nil {
		return nil, err
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Debug().Str("container", e.name).Str("command", command).Msg("sandbox: exec")
	out, err := e.run.Run(execCtx, nil, "docker", "exec", e.name, "bash", "-c", command)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && execCtx.Err() != nil && ctx.Err() == nil {
			return nil, newError(ErrorKindTimeout, e.name, nil, "command exceeded %s timeout", timeout)
		}
		return nil, newError(ErrorKindCommandFailure, e.name, err, "docker exec failed")
	}

	return &ExecResult{
		Stdout:   out.stdout,
		Stderr:   out.stderr,
		ExitCode: out.exitCode,
	}, nil
}

// UpsertFile creates or replaces a file inside the container, streaming the
// full content over stdin so arbitrary bytes survive the trip.
func (e *DockerExecutor) UpsertFile(ctx context.Context, handle *Handle, path string, content string) error {
	if err := e.checkHandle(handle); err != nil {
		return err
	}
	if !strings.HasPrefix(path, "/") {
		return newError(ErrorKindCommandFailure, e.name, nil, "path must be absolute: %s", path)
	}

	quoted := shellQuote(path)
	script := fmt.Sprintf("mkdir -p \"$(dirname %s)\" && cat > %s", quoted, quoted)

	out, err := e.run.Run(ctx, strings.NewReader(content), "docker", "exec", "-i", e.name, "sh", "-c", script)
	if err != nil {
		return newError(ErrorKindCommandFailure, e.name, err, "write %s", path)
	}
	if out.exitCode != 0 {
		return newError(ErrorKindCommandFailure, e.name, nil, "write %s exited %d: %s", path, out.exitCode, strings.TrimSpace(out.stderr))
	}

	log.Debug().Str("container", e.name).Str("path", path).Int("bytes", len(content)).Msg("sandbox: upserted file")
	return nil
}

// Status inspects the container and syncs the handle's lifecycle state.
func (e *DockerExecutor) Status(ctx context.Context, handle *Handle) (State, error) {
	if handle == nil {
		return StateStopped, errors.New("nil sandbox handle")
	}

	running, err := e.isRunning(ctx)
	if err != nil {
		return handle.State(), nil
	}
	if running {
		handle.setState(StateRunning)
	} else if handle.State() == StateRunning {
		handle.setState(StateStopped)
	}
	return handle.State(), nil
}

// Stop force-removes the container and releases the handle.
func (e *DockerExecutor) Stop(ctx context.Context, handle *Handle) error {
	if handle == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeContainer(ctx)
	handle.setState(StateStopped)
	if e.handle == handle {
		e.handle = nil
	}
	log.Info().Str("container", e.name).Msg("sandbox: stopped")
	return nil
}

func (e *DockerExecutor) checkHandle(handle *Handle) error {
	if handle == nil {
		return newError(ErrorKindCommandFailure, e.name, nil, "nil sandbox handle")
	}
	if handle.State() != StateRunning {
		return newError(ErrorKindCommandFailure, e.name, nil, "sandbox is %s, not running", handle.State())
	}
	return nil
}

func (e *DockerExecutor) removeContainer(ctx context.Context) {
	out, err := e.run.Run(ctx, nil, "docker", "rm", "-f", e.name)
	if err != nil {
		log.Debug().Err(err).Str("container", e.name).Msg("sandbox: rm -f failed")
		return
	}
	if out.exitCode == 0 {
		log.Debug().Str("container", e.name).Msg("sandbox: removed existing container")
	}
}

func (e *DockerExecutor) isRunning(ctx context.Context) (bool, error) {
	out, err := e.run.Run(ctx, nil, "docker", "inspect", "-f", "{{.State.Running}}", e.name)
	if err != nil {
		return false, err
	}
	if out.exitCode != 0 {
		return false, nil
	}
	return strings.TrimSpace(out.stdout) == "true", nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var _ Executor = (*DockerExecutor)(nil)
