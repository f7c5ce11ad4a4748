package events

// Sink consumes session events. Emit is called from session reader and
// watcher goroutines, so implementations must be safe for concurrent
// use and must not block for long: a stalled sink stalls the PTY pump
// that feeds it. Sinks that do slow work (network delivery, disk
// writes) should buffer internally and drop on overflow.
//
// Per-session ordering is guaranteed at the Emit call site for events
// produced by the same goroutine; asynchronous sinks are responsible
// for preserving that order downstream.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

// Emit calls fn(ev).
func (fn SinkFunc) Emit(ev Event) { fn(ev) }

// Fanout delivers each event to every sink in order. A nil or empty
// Fanout discards events.
type Fanout []Sink

// Emit forwards ev to each sink sequentially.
func (f Fanout) Emit(ev Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}
