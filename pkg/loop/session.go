package loop

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/devagent/pkg/conversation"
	"github.com/go-go-golems/devagent/pkg/sandbox"
)

// Status is the lifecycle state of one agent session.
type Status string

const (
	StatusActive       Status = "active"
	StatusAwaitingUser Status = "awaiting-user"
	StatusCompleted    Status = "completed"
	StatusAborted      Status = "aborted"
)

// Session is one end-to-end run of the agent loop: the conversation log,
// the sandbox handle and the lifecycle status. It is created at agent
// start, mutated only by the loop, and releases its sandbox on Close.
type Session struct {
	ID           string
	Conversation *conversation.Manager

	mu         sync.RWMutex
	sandbox    *sandbox.Handle
	status     Status
	abortCause string
}

func NewSession(systemPrompt string) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Conversation: conversation.NewManager(systemPrompt),
		status:       StatusActive,
	}
}

// AttachSandbox records the session's execution environment. The sandbox is
// an explicit field owned by the session, passed by handle into every
// executor call; there is no process-wide singleton.
func (s *Session) AttachSandbox(h *sandbox.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sandbox = h
}

func (s *Session) Sandbox() *sandbox.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sandbox
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// AbortCause returns the recorded failure for an aborted session.
func (s *Session) AbortCause() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.abortCause
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) abort(cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusAborted
	s.abortCause = cause
}

// Close releases the session's sandbox. The conversation history stays
// inspectable after close.
func (s *Session) Close(ctx context.Context, executor sandbox.Executor) error {
	s.mu.Lock()
	h := s.sandbox
	s.sandbox = nil
	s.mu.Unlock()

	if h == nil || executor == nil {
		return nil
	}
	log.Debug().Str("session_id", s.ID).Msg("loop: releasing session sandbox")
	return executor.Stop(ctx, h)
}
