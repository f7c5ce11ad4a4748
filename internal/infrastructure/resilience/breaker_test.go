package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock lets tests advance the breaker's view of time directly.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *fixedClock) {
	clock := &fixedClock{t: time.Unix(1700000000, 0)}
	b := New("test", settings)
	b.now = clock.now
	return b, clock
}

func record(b *Breaker, outcomes ...bool) {
	for _, ok := range outcomes {
		if b.Allow() {
			b.Record(ok)
		}
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		outcomes []bool // true = success, false = failure
		expected State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{Threshold: 3},
			outcomes: []bool{true, true, true},
			expected: StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Threshold: 3},
			outcomes: []bool{false, false, false},
			expected: StateOpen,
		},
		{
			name:     "success resets the failure streak",
			settings: Settings{Threshold: 3},
			outcomes: []bool{false, false, true, false, false},
			expected: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.settings)
			record(b, tt.outcomes...)
			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestBreakerOpenRejects(t *testing.T) {
	b, _ := newTestBreaker(Settings{Threshold: 2, Cooldown: time.Minute})

	record(b, false, false)
	require.Equal(t, StateOpen, b.State())

	assert.False(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(Settings{Threshold: 2, Cooldown: time.Minute})

	record(b, false, false)
	require.Equal(t, StateOpen, b.State())

	clock.advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, b.State())

	// Exactly one probe is admitted until its outcome is reported.
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{Threshold: 2, Cooldown: time.Minute})

	record(b, false, false)
	clock.advance(2 * time.Minute)

	require.True(t, b.Allow())
	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// The reopened circuit honors a fresh cooldown.
	clock.advance(2 * time.Minute)
	assert.True(t, b.Allow())
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		Threshold: 2,
		Cooldown:  time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	record(b, false, false)
	clock.advance(2 * time.Minute)
	record(b, true)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
