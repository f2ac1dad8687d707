package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of probes allowed in half-open state
	MaxRequests uint32
	// Interval is the cyclic period of the closed state to clear internal counts
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// ReadyToTrip is called with counts when a call fails in closed state
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a call's error. Errors it accepts (for example
	// a missing record) are returned to the caller but do not count as failures.
	IsSuccessful func(err error) bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards a failing dependency (the storage disk) so callers fail
// fast instead of piling onto it
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = ConsecutiveFailures(5)
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool { return err == nil }
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		expiry:   time.Now().Add(settings.Interval),
	}
}

// ConsecutiveFailures returns a trip policy that opens after n failures in a row
func ConsecutiveFailures(n uint32) func(Counts) bool {
	if n == 0 {
		n = 1
	}
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Run executes fn if the breaker accepts it
func (b *Breaker) Run(fn func() error) error {
	_, err := Call(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Call executes fn through b and returns its result. A nil breaker runs fn
// unguarded.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}

	generation, err := b.beforeRequest()
	if err != nil {
		var zero T
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := fn()
	b.afterRequest(generation, b.settings.IsSuccessful(err))
	return result, err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(time.Now())

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}

	if state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests {
		return generation, ErrTooManyRequests
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	// result of a call admitted under a previous state
	if generation != before {
		return
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.settings.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// currentState returns the current state and generation
func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.settings.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}

	return b.state, uint64(b.expiry.UnixNano())
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
