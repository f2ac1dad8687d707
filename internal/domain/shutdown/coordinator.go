// Package shutdown drives the two-phase shutdown of live plugin instances.
//
// A node moves Active -> ShutdownRequested -> Closed | ForceClosed. Begin
// asks the instance to shut down and arms a deadline; the first of the
// instance's ack and the deadline decides the outcome and the other is
// ignored. Releasing the instance and resolving the Future is handed to the
// scheduler (the storage queue) so it runs after any write the instance
// issued during its grace window.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultTimeout is the grace window used when Begin gets a non-positive timeout
const DefaultTimeout = 3 * time.Second

// Target is the live instance behind a node
type Target interface {
	// RequestShutdown delivers request-shutdown to the instance
	RequestShutdown() error
	// Release tears the instance down
	Release() error
}

// Scheduler runs fn on the storage queue. An error means fn was not accepted.
type Scheduler func(fn func() error) error

// Options configures a Coordinator
type Options struct {
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Schedule Scheduler
	// OnRelease runs inside finalization after the target is released
	OnRelease   func(id types.NodeID, outcome types.ShutdownOutcome)
	StatsWindow int
}

type node struct {
	target      Target
	state       types.NodeState
	future      *Future
	timer       *time.Timer
	requestedAt time.Time
	decided     bool
}

// Coordinator tracks every attached node's shutdown state
type Coordinator struct {
	mu    sync.Mutex
	nodes map[types.NodeID]*node

	schedule  Scheduler
	onRelease func(types.NodeID, types.ShutdownOutcome)
	stats     *recorder
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// New creates a coordinator
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Schedule == nil {
		opts.Schedule = func(fn func() error) error {
			go fn()
			return nil
		}
	}
	return &Coordinator{
		nodes:     make(map[types.NodeID]*node),
		schedule:  opts.Schedule,
		onRelease: opts.OnRelease,
		stats:     newRecorder(opts.StatsWindow),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Register puts a node in Active with target as its instance
func (c *Coordinator) Register(id types.NodeID, target Target) error {
	if target == nil {
		return errors.New("shutdown target is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[id]; ok && !terminal(n.state) {
		return fmt.Errorf("%w: %s", types.ErrNodeBusy, id.Short())
	}
	c.nodes[id] = &node{target: target, state: types.StateActive}
	return nil
}

// Begin requests shutdown and arms the deadline. Calling Begin again for
// the same shutdown returns the same Future.
func (c *Coordinator) Begin(id types.NodeID, timeout time.Duration) (*Future, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", types.ErrNotAttached, id.Short())
	}
	if n.future != nil {
		f := n.future
		c.mu.Unlock()
		return f, nil
	}

	n.state = types.StateShutdownRequested
	n.future = newFuture()
	n.requestedAt = time.Now()
	n.timer = time.AfterFunc(timeout, func() { c.expire(id, n) })
	f := n.future
	c.updatePending()
	c.mu.Unlock()

	c.logger.Info("shutdown requested",
		zap.String("node", id.Short()),
		zap.Duration("timeout", timeout),
	)

	if err := n.target.RequestShutdown(); err != nil {
		c.logger.Warn("request-shutdown not delivered, force closing",
			zap.String("node", id.Short()),
			zap.Error(err),
		)
		c.decide(id, n, types.OutcomeForceClosed)
	}
	return f, nil
}

// Ack records the instance's shutdown-ack. It reports whether the ack
// decided the outcome; a late or unsolicited ack is ignored.
func (c *Coordinator) Ack(id types.NodeID) bool {
	c.mu.Lock()
	n, ok := c.nodes[id]
	c.mu.Unlock()

	if !ok {
		return false
	}
	if c.decide(id, n, types.OutcomeClosed) {
		return true
	}
	c.logger.Debug("ignoring shutdown-ack", zap.String("node", id.Short()))
	return false
}

// Terminated records that target went away on its own. A shutdown in
// progress resolves as Closed; an Active node is released. Reports from a
// target no longer registered for id are ignored.
func (c *Coordinator) Terminated(id types.NodeID, target Target) {
	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || n.decided || n.target != target {
		c.mu.Unlock()
		return
	}

	if n.state == types.StateShutdownRequested {
		c.mu.Unlock()
		c.decide(id, n, types.OutcomeClosed)
		return
	}

	// Active: release only. The node stays non-terminal until the release
	// has run, so Register keeps refusing a new target until then.
	n.decided = true
	n.future = newFuture()
	c.mu.Unlock()

	c.run(func() error {
		c.release(id, n, types.OutcomeClosed)
		c.mu.Lock()
		n.state = types.StateClosed
		c.mu.Unlock()
		n.future.resolve(types.OutcomeClosed)
		return nil
	})
}

func (c *Coordinator) expire(id types.NodeID, n *node) {
	if c.decide(id, n, types.OutcomeForceClosed) {
		c.logger.Warn("shutdown deadline passed without ack", zap.String("node", id.Short()))
	}
}

// decide picks the outcome if nobody has, then schedules finalization
func (c *Coordinator) decide(id types.NodeID, n *node, outcome types.ShutdownOutcome) bool {
	c.mu.Lock()
	if n.decided || n.state != types.StateShutdownRequested {
		c.mu.Unlock()
		return false
	}
	n.decided = true
	if n.timer != nil {
		n.timer.Stop()
	}
	c.mu.Unlock()

	c.run(func() error {
		c.finalize(id, n, outcome)
		return nil
	})
	return true
}

// run hands fn to the scheduler, running it inline if the queue refuses
func (c *Coordinator) run(fn func() error) {
	if err := c.schedule(fn); err != nil {
		c.logger.Debug("scheduler refused finalization, running inline", zap.Error(err))
		_ = fn()
	}
}

func (c *Coordinator) finalize(id types.NodeID, n *node, outcome types.ShutdownOutcome) {
	c.release(id, n, outcome)

	elapsed := time.Since(n.requestedAt)
	c.mu.Lock()
	if outcome == types.OutcomeForceClosed {
		n.state = types.StateForceClosed
	} else {
		n.state = types.StateClosed
	}
	c.updatePending()
	c.mu.Unlock()

	c.stats.add(outcome, elapsed)
	c.metrics.RecordShutdown(outcome.String(), elapsed)
	c.logger.Info("shutdown complete",
		zap.String("node", id.Short()),
		zap.String("outcome", outcome.String()),
		zap.Duration("elapsed", elapsed),
	)

	n.future.resolve(outcome)
}

func (c *Coordinator) release(id types.NodeID, n *node, outcome types.ShutdownOutcome) {
	if err := n.target.Release(); err != nil {
		c.logger.Warn("release failed", zap.String("node", id.Short()), zap.Error(err))
	}
	if c.onRelease != nil {
		c.onRelease(id, outcome)
	}
}

// State returns the node's state, if the node is known
func (c *Coordinator) State(id types.NodeID) (types.NodeState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return 0, false
	}
	return n.state, true
}

// Live reports whether the node has an instance that has not been released
func (c *Coordinator) Live(id types.NodeID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	return ok && !terminal(n.state)
}

// Pending returns the number of shutdowns in progress
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Coordinator) pendingLocked() int {
	count := 0
	for _, n := range c.nodes {
		if n.state == types.StateShutdownRequested {
			count++
		}
	}
	return count
}

func (c *Coordinator) updatePending() {
	c.metrics.SetShutdownsPending(c.pendingLocked())
}

// Stats returns counts and latency statistics of recent shutdowns
func (c *Coordinator) Stats() Stats {
	s := c.stats.snapshot()
	s.Pending = c.Pending()
	return s
}

// CloseAll force-closes every pending shutdown, starts a zero-grace
// shutdown for every Active node and waits for all of them or ctx.
func (c *Coordinator) CloseAll(ctx context.Context) error {
	c.mu.Lock()
	type pending struct {
		id types.NodeID
		n  *node
	}
	var active, requested []pending
	for id, n := range c.nodes {
		switch {
		case n.state == types.StateActive && !n.decided:
			active = append(active, pending{id, n})
		case n.state == types.StateShutdownRequested:
			requested = append(requested, pending{id, n})
		}
	}
	c.mu.Unlock()

	var futures []*Future
	for _, p := range active {
		c.mu.Lock()
		if p.n.future == nil {
			p.n.state = types.StateShutdownRequested
			p.n.future = newFuture()
			p.n.requestedAt = time.Now()
		}
		c.mu.Unlock()
		requested = append(requested, p)
	}
	for _, p := range requested {
		c.decide(p.id, p.n, types.OutcomeForceClosed)
		c.mu.Lock()
		if p.n.future != nil {
			futures = append(futures, p.n.future)
		}
		c.mu.Unlock()
	}

	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func terminal(s types.NodeState) bool {
	return s == types.StateClosed || s == types.StateForceClosed
}
