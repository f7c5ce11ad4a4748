package terminal

import (
	"fmt"
	"sort"
	"sync"
)

// registry is the single source of truth for live sessions. One mutex
// guards both the map and the id counter, which keeps ids strictly
// increasing under concurrent spawns. The lock is only ever held for
// map and flag work; PTY reads, writes, and resizes all happen after
// it is released.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	lastSeq  uint64
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// insert assigns the next id to s and stores it. Ids are never reused,
// even after sessions are removed.
func (r *registry) insert(s *session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeq++
	s.seq = r.lastSeq
	s.info.ID = fmt.Sprintf("terminal-%d", r.lastSeq)
	r.sessions[s.info.ID] = s
	return s.info.ID
}

// handle returns the master for a write or resize. Callers perform the
// I/O after this returns, outside the lock.
func (r *registry) handle(id string) (Master, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.master, nil
}

// markClosed requests cooperative shutdown and reports whether the
// session was present. Unknown ids are not an error: close must stay
// unconditional for callers, and a session that is already gone is the
// desired end state.
func (r *registry) markClosed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.closed = true
		s.info.Closed = true
	}
	return ok
}

// closeRequested reports whether a reader loop should stop: either its
// session is marked closed or the entry is already gone.
func (r *registry) closeRequested(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return !ok || s.closed
}

// remove deletes the entry and releases the PTY master. Only the
// owning reader loop calls this, exactly once per session, so removal
// races cannot happen by construction. The master is closed after the
// lock is dropped.
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.master.Close()
	}
	return ok
}

// setSize records the window size after a successful resize.
func (r *registry) setSize(id string, rows, cols uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.info.Rows = rows
		s.info.Cols = cols
	}
}

// count returns the number of registered sessions, draining ones
// included.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// get returns a snapshot of one session.
func (r *registry) get(id string) (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return s.info, true
}

// list returns snapshots of all sessions in spawn order.
func (r *registry) list() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	seqs := make(map[string]uint64, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s.info)
		seqs[id] = s.seq
	}
	sort.Slice(out, func(i, j int) bool {
		return seqs[out[i].ID] < seqs[out[j].ID]
	})
	return out
}

// output returns the scrollback of one session, which survives until
// the reader loop removes the entry.
func (r *registry) output(id string) (*scrollback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.scrollback, true
}

// closeAll marks every session closed and returns the masters so the
// caller can close them outside the lock. Closing a master unblocks
// its reader loop and hangs up its shell; used for process shutdown.
func (r *registry) closeAll() []Master {
	r.mu.Lock()
	defer r.mu.Unlock()

	masters := make([]Master, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.closed = true
		s.info.Closed = true
		masters = append(masters, s.master)
	}
	return masters
}
