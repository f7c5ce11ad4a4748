package events

// Type identifies the notification channel an Event is published on.
type Type string

const (
	// TypeOutput carries a chunk of PTY output.
	TypeOutput Type = "terminal:output"
	// TypeError reports an unrecoverable read failure.
	TypeError Type = "terminal:error"
	// TypeExit reports session termination with an exit code.
	TypeExit Type = "terminal:exit"
)

// Event is a single asynchronous session notification. Which payload
// field is meaningful depends on Type: Data for output, Error for read
// failures, Code for exits.
//
// A terminating session produces up to two exit events: one from the
// reader loop when the output stream ends (always code 0) and one from
// the exit watcher carrying the shell's real exit code. Consumers should
// treat the pair as a single termination.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      *int   `json:"code,omitempty"`
}

// NewOutput builds an output event for a chunk of decoded PTY data.
func NewOutput(sessionID, data string) Event {
	return Event{Type: TypeOutput, SessionID: sessionID, Data: data}
}

// NewError builds an error event from a failed PTY read.
func NewError(sessionID string, err error) Event {
	return Event{Type: TypeError, SessionID: sessionID, Error: err.Error()}
}

// NewExit builds an exit event carrying the given exit code.
func NewExit(sessionID string, code int) Event {
	return Event{Type: TypeExit, SessionID: sessionID, Code: &code}
}

// ExitCode returns the exit code of an exit event, or (0, false) for
// any other event type.
func (e Event) ExitCode() (int, bool) {
	if e.Type != TypeExit || e.Code == nil {
		return 0, false
	}
	return *e.Code, true
}
