// Package circuit provides a consecutive-count circuit breaker for guarding
// optional collaborators such as caches. The breaker itself holds no clock:
// while open, callers decide when to probe the primary again, and consecutive
// successful probes close the circuit.
package circuit

import "sync"

// State reports whether the circuit is passing traffic to the primary.
type State int

const (
	// StateClosed means the primary is healthy and should be used.
	StateClosed State = iota
	// StateOpen means the primary is failing and callers should fall back.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// StateChange reports a transition caused by a Record call. Both fields are
// false when the call did not move the breaker between states, which lets
// callers log transitions exactly once.
type StateChange struct {
	Opened bool
	Closed bool
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
)

// Breaker counts consecutive failures and successes of a named collaborator.
// It opens after failureThreshold consecutive failures and closes again after
// successThreshold consecutive successes while open. All methods are safe for
// concurrent use.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Values below 1 are ignored.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n >= 1 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// circuit. Values below 1 are ignored.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n >= 1 {
			b.successThreshold = n
		}
	}
}

// New returns a closed Breaker. The name identifies the guarded collaborator
// in logs and metrics.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the collaborator name the breaker was created with.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether callers should currently use their fallback.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordFailure registers a failed call to the primary. It returns whether the
// caller should use the fallback from now on, and the state transition this
// call caused, if any. A failure while open resets the success streak.
func (b *Breaker) RecordFailure() (bool, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	if b.state == StateOpen {
		return true, StateChange{}
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess registers a successful call to the primary. It returns whether
// the caller should use the primary from now on, and the state transition this
// call caused, if any. While closed a success only clears the failure streak.
func (b *Breaker) RecordSuccess() (bool, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			return true, StateChange{Closed: true}
		}
		return false, StateChange{}
	}

	b.failureCount = 0
	return true, StateChange{}
}

// Reset forces the breaker closed and clears both streaks.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
}
