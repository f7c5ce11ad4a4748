package terminal

import (
	"strings"
	"sync"
)

// scrollback keeps the most recent PTY output bytes so a client that
// attaches after spawn can repaint its view. Oldest bytes are trimmed
// once the fixed capacity is exceeded.
type scrollback struct {
	mu  sync.Mutex
	buf []byte
	max int
}

// DefaultScrollbackBytes is the per-session scrollback capacity used
// when a manager is not configured otherwise.
const DefaultScrollbackBytes = 256 * 1024

func newScrollback(max int) *scrollback {
	if max <= 0 {
		max = DefaultScrollbackBytes
	}
	return &scrollback{max: max}
}

// Write appends raw output bytes, trimming from the front to stay
// within capacity.
func (s *scrollback) Write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p) >= s.max {
		s.buf = append(s.buf[:0], p[len(p)-s.max:]...)
		return
	}
	s.buf = append(s.buf, p...)
	if excess := len(s.buf) - s.max; excess > 0 {
		copy(s.buf, s.buf[excess:])
		s.buf = s.buf[:s.max]
	}
}

// Len returns the number of buffered bytes.
func (s *scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Snapshot returns the buffered output decoded lossily: trimming can
// split a multibyte rune, and the torn prefix decodes to U+FFFD the
// same way torn read chunks do on the event stream.
func (s *scrollback) Snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.ToValidUTF8(string(s.buf), "�")
}
