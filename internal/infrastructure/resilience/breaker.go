// Package resilience provides a circuit breaker for outbound delivery
// paths. The breaker fails fast while a downstream endpoint is unhealthy
// instead of queueing doomed work behind it.
package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed admits every call.
	StateClosed State = iota
	// StateOpen rejects every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a single probe call to test recovery.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values fall back to defaults.
type Settings struct {
	// Threshold is the number of consecutive failures that opens the
	// circuit. Defaults to 5.
	Threshold int
	// Cooldown is how long the circuit stays open before admitting a
	// probe. Defaults to 30 seconds.
	Cooldown time.Duration
	// OnStateChange, if set, is called outside the breaker lock whenever
	// the state transitions.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker. Callers ask Allow
// before attempting delivery and report the outcome with Record:
//
//	if b.Allow() {
//		err := deliver()
//		b.Record(err == nil)
//	}
//
// While open, Allow returns false until the cooldown elapses; the
// breaker then admits one probe. A successful probe closes the circuit,
// a failed one reopens it for another cooldown.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a breaker with the given name and settings.
func New(name string, settings Settings) *Breaker {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed. Each admitted call must be
// paired with exactly one Record.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var change func()
	allowed := false
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.settings.Cooldown {
			change = b.transition(StateHalfOpen)
			b.probing = true
			allowed = true
		}
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			allowed = true
		}
	}
	b.mu.Unlock()
	if change != nil {
		change()
	}
	return allowed
}

// Record reports the outcome of a call admitted by Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	var change func()
	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
		} else {
			b.failures++
			if b.failures >= b.settings.Threshold {
				change = b.open()
			}
		}
	case StateHalfOpen:
		b.probing = false
		if success {
			b.failures = 0
			change = b.transition(StateClosed)
		} else {
			change = b.open()
		}
	case StateOpen:
		// Late Record after the circuit already opened; nothing to update.
	}
	b.mu.Unlock()
	if change != nil {
		change()
	}
}

// open moves to StateOpen and stamps the cooldown start. Callers must
// hold b.mu.
func (b *Breaker) open() func() {
	b.openedAt = b.now()
	b.failures = 0
	b.probing = false
	return b.transition(StateOpen)
}

// transition changes state and returns the OnStateChange callback to be
// invoked after the lock is released, or nil. Callers must hold b.mu.
func (b *Breaker) transition(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	if b.settings.OnStateChange == nil {
		return nil
	}
	fn := b.settings.OnStateChange
	name := b.name
	return func() { fn(name, from, to) }
}
