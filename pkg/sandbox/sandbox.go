package sandbox

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle state of one execution environment.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
)

// Handle represents one live execution environment. At most one handle is
// active per executor; all sandbox state is reachable only through the
// Executor operations.
type Handle struct {
	mu    sync.Mutex
	name  string
	state State
}

func newHandle(name string) *Handle {
	return &Handle{name: name, state: StateStopped}
}

// Name returns the environment's identifier (the container name).
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// ExecResult is the outcome of one command execution. A non-zero exit code
// is a normal result, not an error.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs commands and file mutations inside an isolated, reusable
// execution environment.
type Executor interface {
	// Start creates the environment. Idempotent with respect to naming
	// collisions: an existing environment with the same identifier is torn
	// down and recreated rather than reused.
	Start(ctx context.Context) (*Handle, error)
	// Execute runs a shell command with a caller-supplied timeout. On
	// timeout the environment remains usable for subsequent calls.
	Execute(ctx context.Context, handle *Handle, command string, timeout time.Duration) (*ExecResult, error)
	// UpsertFile creates or replaces a file with the full content given.
	UpsertFile(ctx context.Context, handle *Handle, path string, content string) error
	// Status reports the environment's current lifecycle state.
	Status(ctx context.Context, handle *Handle) (State, error)
	// Stop tears the environment down.
	Stop(ctx context.Context, handle *Handle) error
}
