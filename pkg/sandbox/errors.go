package sandbox

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies sandbox failures.
type ErrorKind string

const (
	// ErrorKindTimeout: a command exceeded its caller-supplied timeout.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindStartupFailure: the environment could not be created. The
	// session cannot continue without a usable sandbox.
	ErrorKindStartupFailure ErrorKind = "startup-failure"
	// ErrorKindCommandFailure: the command could not be run at all (as
	// opposed to running and exiting non-zero).
	ErrorKindCommandFailure ErrorKind = "command-failure"
)

// Error is the sandbox error taxonomy.
type Error struct {
	Kind      ErrorKind
	Container string
	Message   string
	cause     error
}

func newError(kind ErrorKind, container string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      kind,
		Container: container,
		Message:   fmt.Sprintf(format, args...),
		cause:     cause,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("sandbox %s [%s]: %s: %v", e.Container, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("sandbox %s [%s]: %s", e.Container, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the sandbox error kind of err, or "" if err is not a
// sandbox error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func IsTimeout(err error) bool {
	return KindOf(err) == ErrorKindTimeout
}

func IsStartupFailure(err error) bool {
	return KindOf(err) == ErrorKindStartupFailure
}
