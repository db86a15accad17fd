package runner

import (
	"fmt"
	"time"
)

// SpawnError means the OS could not launch the process at all.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn process: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// TimeoutError means the wall-clock budget elapsed and the process was
// signalled to stop. The forced kill after the grace window happens in the
// background; the caller is not kept waiting for it.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("process timed out after %s", e.Timeout)
}

// SignalError means the process died from a signal the runner did not send.
type SignalError struct {
	Signal string
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("process terminated by signal %s", e.Signal)
}

// ExitError is a clean exit with a non-zero status.
type ExitError struct {
	Code          int
	StderrExcerpt string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with status %d", e.Code)
}

func (e *ExitError) Diagnostic() string {
	return e.StderrExcerpt
}

// NoResultError is a clean zero exit whose stdout contained no marked result
// object.
type NoResultError struct {
	StdoutExcerpt string
	StderrExcerpt string
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("no %q result object found in process output", ResultMarker)
}

func (e *NoResultError) Diagnostic() string {
	if e.StderrExcerpt == "" {
		return e.StdoutExcerpt
	}
	return fmt.Sprintf("stdout:\n%s\nstderr:\n%s", e.StdoutExcerpt, e.StderrExcerpt)
}

// Diagnoser is implemented by errors that carry captured stream excerpts.
type Diagnoser interface {
	Diagnostic() string
}
