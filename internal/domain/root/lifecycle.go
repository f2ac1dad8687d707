package root

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/queue"
	"github.com/GriffinCanCode/plugstore/internal/domain/shutdown"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Attach binds a live instance to a known node. A node holds at most one
// instance; a second Attach fails with ErrNodeBusy.
func (r *Root) Attach(ctx context.Context, id types.NodeID, target shutdown.Target) (err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.Attach", attribute.String("node", id.Short()))
	defer func() { tracing.Finish(span, err) }()

	if err := id.Validate(); err != nil {
		return err
	}
	if err := r.checkOpen(); err != nil {
		return err
	}

	return queue.Run(ctx, r.queue, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		info, ok := r.known[id]
		if !ok {
			return fmt.Errorf("%w: node %s", types.ErrNotFound, id.Short())
		}
		if err := r.shutdowns.Register(id, target); err != nil {
			return err
		}
		info.attached = true
		r.metrics.SetNodesAttached(r.attachedLocked())
		return nil
	})
}

// Detach reports that target, attached to the node, went away. A shutdown
// in progress resolves as Closed.
func (r *Root) Detach(id types.NodeID, target shutdown.Target) {
	r.shutdowns.Terminated(id, target)
}

// BeginShutdown sends request-shutdown to the node's instance and returns a
// Future resolving to Closed (acked in time) or ForceClosed (deadline).
// A non-positive timeout uses the configured default.
func (r *Root) BeginShutdown(id types.NodeID, timeout time.Duration) (*shutdown.Future, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = r.shutdownTimeout
	}
	return r.shutdowns.Begin(id, timeout)
}

// AckShutdown delivers the instance's shutdown-ack. It reports whether the
// ack was accepted; acks after the deadline are ignored.
func (r *Root) AckShutdown(id types.NodeID) bool {
	return r.shutdowns.Ack(id)
}

// NodeState returns the shutdown state of an attached or released node
func (r *Root) NodeState(id types.NodeID) (types.NodeState, bool) {
	return r.shutdowns.State(id)
}

// ShutdownStats returns shutdown counts and latency statistics
func (r *Root) ShutdownStats() shutdown.Stats {
	return r.shutdowns.Stats()
}

// onRelease runs on the queue once an instance is released
func (r *Root) onRelease(id types.NodeID, outcome types.ShutdownOutcome) {
	r.mu.Lock()
	info, ok := r.known[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	info.attached = false
	r.metrics.SetNodesAttached(r.attachedLocked())

	var purge func(types.NodeID) error
	switch {
	case info.purge:
		purge = r.memory.ClearNode
		delete(r.known, id)
		r.metrics.AddPrivateNodesPurged(1)
	case info.stale:
		purge = r.disk.ClearNode
		delete(r.known, id)
	}
	r.mu.Unlock()

	if purge != nil {
		if err := purge(id); err != nil {
			r.logger.Warn("failed to purge released node", zap.String("node", id.Short()), zap.Error(err))
		}
	}

	r.logger.Debug("instance released",
		zap.String("node", id.Short()),
		zap.String("outcome", outcome.String()),
		zap.Bool("purged", purge != nil),
	)
}

// EndPrivateSession forgets every private token. Unattached private nodes
// are purged now; attached ones when their instance is released.
func (r *Root) EndPrivateSession(ctx context.Context) (err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.EndPrivateSession")
	defer func() { tracing.Finish(span, err) }()

	if err := r.checkOpen(); err != nil {
		return err
	}

	return queue.Run(ctx, r.queue, func() error {
		session, ok := r.private.EndSession()
		if !ok {
			return nil
		}

		purged, deferred := 0, 0
		for _, id := range session.Nodes {
			r.mu.Lock()
			info, known := r.known[id]
			if known && info.attached {
				info.purge = true
				deferred++
				r.mu.Unlock()
				continue
			}
			delete(r.known, id)
			r.mu.Unlock()

			if err := r.memory.ClearNode(id); err != nil {
				return err
			}
			purged++
		}

		r.metrics.RecordPrivateSessionEnd(purged)
		r.logger.Info("private session ended",
			zap.String("session", session.ID.String()),
			zap.Duration("lifetime", time.Since(session.StartedAt)),
			zap.Int("purged", purged),
			zap.Int("deferred", deferred),
		)
		return nil
	})
}

func (r *Root) attachedLocked() int {
	n := 0
	for _, info := range r.known {
		if info.attached {
			n++
		}
	}
	return n
}
