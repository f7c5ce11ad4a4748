package terminal

import (
	"io"
	"time"
)

// Default window size applied when a spawn request omits dimensions.
const (
	DefaultRows uint16 = 24
	DefaultCols uint16 = 80
)

// readBufferSize is the chunk size of the reader loop.
const readBufferSize = 4096

// Master is the PTY master handle a session owns. The one descriptor
// serves all three roles a session needs: the reader loop consumes it,
// Write feeds it, and Resize adjusts the window through it.
type Master interface {
	io.ReadWriteCloser

	// Resize sets the PTY window size.
	Resize(rows, cols uint16) error
}

// Process is the shell child handle owned by the exit watcher.
type Process interface {
	// Wait blocks until the child terminates. A shell that exited,
	// even with a nonzero status, reports (code, nil); the error is
	// reserved for wait itself failing.
	Wait() (int, error)
}

// Handles bundles what a Spawner returns for one session.
type Handles struct {
	Master     Master
	Proc       Process
	Shell      string // resolved shell binary
	WorkingDir string // resolved working directory
}

// SessionInfo is a point-in-time public snapshot of a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Rows       uint16    `json:"rows"`
	Cols       uint16    `json:"cols"`
	StartedAt  time.Time `json:"started_at"`
	Closed     bool      `json:"closed"`
}

// session is the registry's unit of ownership for one shell instance.
// The closed flag and info fields are guarded by the registry mutex;
// master and scrollback are internally synchronized and safe to use
// after the lock is released.
type session struct {
	seq        uint64
	master     Master
	scrollback *scrollback
	closed     bool
	info       SessionInfo
}
