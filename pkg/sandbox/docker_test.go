package sandbox

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers docker invocations from canned behavior and records
// every command line it sees.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// execDelay stalls "docker exec" calls until the context expires, to
	// simulate a long-running command.
	execDelay time.Duration
	// failRun makes "docker run" exit non-zero.
	failRun bool
	// execExit is the exit code reported for "docker exec" calls.
	execExit int
	// stdin captures the last stdin payload.
	stdin string
}

func (f *fakeRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (runOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.mu.Lock()
		f.stdin = string(b)
		f.mu.Unlock()
	}

	switch args[0] {
	case "run":
		if f.failRun {
			return runOutput{stderr: "no such image", exitCode: 125}, nil
		}
		return runOutput{stdout: "deadbeef\n"}, nil
	case "inspect":
		return runOutput{stdout: "true\n"}, nil
	case "exec":
		if f.execDelay > 0 {
			select {
			case <-time.After(f.execDelay):
			case <-ctx.Done():
				return runOutput{}, ctx.Err()
			}
		}
		return runOutput{stdout: "ok\n", exitCode: f.execExit}, nil
	default:
		return runOutput{}, nil
	}
}

func (f *fakeRunner) commandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func TestStartIsIdempotentByName(t *testing.T) {
	run := &fakeRunner{}
	e := NewDockerExecutor("dev-test", withRunner(run))

	first, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, first.State())

	second, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, second.State())

	// Only the newest handle stays running; restart invalidates the old one.
	assert.Equal(t, StateStopped, first.State())

	// Every start removes the previous container before creating the new
	// one.
	lines := run.commandLines()
	var removes, runs int
	for _, line := range lines {
		if strings.HasPrefix(line, "docker rm -f dev-test") {
			removes++
		}
		if strings.HasPrefix(line, "docker run -d --name dev-test") {
			runs++
		}
	}
	assert.Equal(t, 2, runs)
	assert.GreaterOrEqual(t, removes, 2)
}

func TestStartFailureReportsStartupError(t *testing.T) {
	run := &fakeRunner{failRun: true}
	e := NewDockerExecutor("dev-test", withRunner(run))

	_, err := e.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsStartupFailure(err))
	assert.Contains(t, err.Error(), "no such image")
}

func TestExecuteTimeoutLeavesHandleUsable(t *testing.T) {
	run := &fakeRunner{execDelay: 5 * time.Second}
	e := NewDockerExecutor("dev-test", withRunner(run))

	handle, err := e.Start(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = e.Execute(context.Background(), handle, "sleep 5", 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second, "timeout must fire near the deadline")

	// The environment survives the timeout.
	assert.Equal(t, StateRunning, handle.State())
	run.execDelay = 0
	res, err := e.Execute(context.Background(), handle, "echo ok", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Stdout)
}

func TestExecuteNonZeroExitIsNormalResult(t *testing.T) {
	run := &fakeRunner{}
	e := NewDockerExecutor("dev-test", withRunner(run))
	handle, err := e.Start(context.Background())
	require.NoError(t, err)

	run.execExit = 1
	res, err := e.Execute(context.Background(), handle, "false", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestExecuteRequiresRunningHandle(t *testing.T) {
	run := &fakeRunner{}
	e := NewDockerExecutor("dev-test", withRunner(run))
	handle, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Stop(context.Background(), handle))

	_, err = e.Execute(context.Background(), handle, "echo hi", time.Second)
	require.Error(t, err)
	assert.Equal(t, ErrorKindCommandFailure, KindOf(err))
}

func TestUpsertFileStreamsContentOverStdin(t *testing.T) {
	run := &fakeRunner{}
	e := NewDockerExecutor("dev-test", withRunner(run))
	handle, err := e.Start(context.Background())
	require.NoError(t, err)

	content := "package main\n\nfunc main() {}\n"
	require.NoError(t, e.UpsertFile(context.Background(), handle, "/app/main.go", content))
	assert.Equal(t, content, run.stdin)

	err = e.UpsertFile(context.Background(), handle, "relative/path.go", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute")
}
