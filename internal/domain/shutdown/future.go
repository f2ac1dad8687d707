package shutdown

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
)

// Future resolves exactly once with a shutdown outcome
type Future struct {
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	outcome  types.ShutdownOutcome
	thens    []func(types.ShutdownOutcome)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns an already resolved future
func Resolved(outcome types.ShutdownOutcome) *Future {
	f := newFuture()
	f.resolve(outcome)
	return f
}

func (f *Future) resolve(outcome types.ShutdownOutcome) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.outcome = outcome
	thens := f.thens
	f.thens = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range thens {
		fn(outcome)
	}
	return true
}

// Done is closed once the outcome is known
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Outcome returns the outcome and whether the future has resolved
func (f *Future) Outcome() (types.ShutdownOutcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome, f.resolved
}

// Wait blocks until the future resolves or ctx ends
func (f *Future) Wait(ctx context.Context) (types.ShutdownOutcome, error) {
	select {
	case <-f.done:
		o, _ := f.Outcome()
		return o, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Then registers fn to run once with the outcome after resolution. On an
// already resolved future fn runs immediately on the caller's goroutine.
func (f *Future) Then(fn func(types.ShutdownOutcome)) {
	f.mu.Lock()
	if !f.resolved {
		f.thens = append(f.thens, fn)
		f.mu.Unlock()
		return
	}
	outcome := f.outcome
	f.mu.Unlock()
	fn(outcome)
}
