package root

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/plugstore/internal/domain/queue"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.opentelemetry.io/otel/attribute"
)

func (r *Root) validateRecord(id types.NodeID, name string) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := types.ValidateRecordName(name); err != nil {
		return err
	}
	return r.checkOpen()
}

// Put writes a record, replacing any previous value
func (r *Root) Put(ctx context.Context, id types.NodeID, name string, data []byte) (err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.Put",
		attribute.String("node", id.Short()),
		attribute.Int("bytes", len(data)),
	)
	defer func() { tracing.Finish(span, err) }()

	if err := r.validateRecord(id, name); err != nil {
		return err
	}

	return queue.Run(ctx, r.queue, func() error {
		store, err := r.storeFor(id)
		if err != nil {
			return err
		}
		return store.Put(id, name, data)
	})
}

// Get reads a record. An absent node or record is ErrNotFound; a
// zero-length record is an empty, non-nil slice.
func (r *Root) Get(ctx context.Context, id types.NodeID, name string) (data []byte, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.Get", attribute.String("node", id.Short()))
	defer func() { tracing.Finish(span, err) }()

	if err := r.validateRecord(id, name); err != nil {
		return nil, err
	}

	return queue.Do(ctx, r.queue, func() ([]byte, error) {
		store, err := r.storeFor(id)
		if err != nil {
			return nil, err
		}
		return store.Get(id, name)
	})
}

// Delete removes a record; removing an absent record succeeds
func (r *Root) Delete(ctx context.Context, id types.NodeID, name string) (err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.Delete", attribute.String("node", id.Short()))
	defer func() { tracing.Finish(span, err) }()

	if err := r.validateRecord(id, name); err != nil {
		return err
	}

	return queue.Run(ctx, r.queue, func() error {
		store, err := r.storeFor(id)
		if err != nil {
			return err
		}
		return store.Delete(id, name)
	})
}

// ListNames returns the node's record names, sorted
func (r *Root) ListNames(ctx context.Context, id types.NodeID) (names []string, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.ListNames", attribute.String("node", id.Short()))
	defer func() { tracing.Finish(span, err) }()

	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return queue.Do(ctx, r.queue, func() ([]string, error) {
		store, err := r.storeFor(id)
		if err != nil {
			return nil, err
		}
		return store.ListNames(id)
	})
}

// ClearNode drops every record of the node
func (r *Root) ClearNode(ctx context.Context, id types.NodeID) (err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.ClearNode", attribute.String("node", id.Short()))
	defer func() { tracing.Finish(span, err) }()

	if err := id.Validate(); err != nil {
		return err
	}
	if err := r.checkOpen(); err != nil {
		return err
	}

	return queue.Run(ctx, r.queue, func() error {
		store, err := r.storeFor(id)
		if err != nil {
			return err
		}
		if err := store.ClearNode(id); err != nil {
			return fmt.Errorf("clear node %s: %w", id.Short(), err)
		}
		return nil
	})
}
