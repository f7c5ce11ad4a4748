package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for ids that were never issued or
	// whose session has already been removed.
	ErrSessionNotFound = errors.New("terminal: session not found")

	// ErrSessionClosed is returned for sessions that have a close
	// pending but have not been removed by their reader loop yet.
	ErrSessionClosed = errors.New("terminal: session closed")
)

// Spawn step names used in SetupError.
const (
	StepOpenPTY    = "open pty"
	StepSizePTY    = "size pty"
	StepStartShell = "start shell"
)

// SetupError reports which step of session creation failed. A failed
// spawn leaves no session behind: nothing is registered and no
// goroutines are started.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("terminal: %s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IOError reports a failed write or resize on a live session.
type IOError struct {
	Op  string // "write" or "resize"
	ID  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("terminal: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
