package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/shutdown"
	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.uber.org/zap"
)

// Storage is the slice of the storage root a host needs
type Storage interface {
	GetNodeID(ctx context.Context, origin, topLevelOrigin string, mode types.Mode) (types.NodeID, error)
	Attach(ctx context.Context, id types.NodeID, target shutdown.Target) error
	Detach(id types.NodeID, target shutdown.Target)
	BeginShutdown(id types.NodeID, timeout time.Duration) (*shutdown.Future, error)
	AckShutdown(id types.NodeID) bool

	Put(ctx context.Context, id types.NodeID, name string, data []byte) error
	Get(ctx context.Context, id types.NodeID, name string) ([]byte, error)
	Delete(ctx context.Context, id types.NodeID, name string) error
	ListNames(ctx context.Context, id types.NodeID) ([]string, error)
	ClearNode(ctx context.Context, id types.NodeID) error
}

// ForwardFunc receives events the host does not handle itself
type ForwardFunc func(h *Host, ev Event)

// Host runs one instance bound to one node
type Host struct {
	node       types.NodeID
	instanceID id.InstanceID
	origin     string
	top        string
	mode       types.Mode
	startedAt  time.Time

	inst    Instance
	storage Storage
	forward ForwardFunc
	logger  *zap.Logger

	// ops bounds one storage request served for the instance
	opTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NodeID returns the node the instance is bound to
func (h *Host) NodeID() types.NodeID { return h.node }

// InstanceID returns the host's instance id
func (h *Host) InstanceID() id.InstanceID { return h.instanceID }

// Origin returns the instance's origin pair
func (h *Host) Origin() (origin, topLevelOrigin string) { return h.origin, h.top }

// Mode returns the node's mode
func (h *Host) Mode() types.Mode { return h.mode }

// StartedAt returns when the instance was attached
func (h *Host) StartedAt() time.Time { return h.startedAt }

// Done is closed when the host loop exits
func (h *Host) Done() <-chan struct{} { return h.done }

// Update sends an application message to the instance
func (h *Host) Update(payload string) error {
	return h.inst.Send(Update{Payload: payload})
}

// RequestShutdown implements shutdown.Target
func (h *Host) RequestShutdown() error {
	return h.inst.Send(RequestShutdown{})
}

// Release implements shutdown.Target
func (h *Host) Release() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.inst.Close()
	})
	return err
}

func (h *Host) run() {
	defer close(h.done)
	defer func() {
		h.storage.Detach(h.node, h)
		_ = h.Release()
	}()

	for ev := range h.inst.Events() {
		switch e := ev.(type) {
		case StorageRequest:
			reply := h.serve(e)
			if err := h.inst.Send(reply); err != nil {
				h.logger.Debug("storage reply not delivered", zap.Uint64("request", e.ID), zap.Error(err))
			}
		case ShutdownAck:
			h.storage.AckShutdown(h.node)
		case Terminated:
			if e.Err != nil {
				h.logger.Warn("plugin terminated", zap.Error(e.Err))
			}
			return
		default:
			if h.forward != nil {
				h.forward(h, ev)
			}
		}
	}
}

// serve runs a storage request to completion before the loop reads the
// next event, so a write followed by shutdown-ack is durable before the ack
// is processed
func (h *Host) serve(req StorageRequest) StorageReply {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	reply := StorageReply{ID: req.ID}
	var err error

	switch req.Op {
	case OpPut:
		err = h.storage.Put(ctx, h.node, req.Name, req.Data)
	case OpGet:
		reply.Data, err = h.storage.Get(ctx, h.node, req.Name)
	case OpDelete:
		err = h.storage.Delete(ctx, h.node, req.Name)
	case OpList:
		reply.Names, err = h.storage.ListNames(ctx, h.node)
	case OpClear:
		err = h.storage.ClearNode(ctx, h.node)
	default:
		err = fmt.Errorf("unknown storage op %q", req.Op)
	}

	reply.Status = StatusFor(err)
	if err != nil {
		reply.Error = err.Error()
		if reply.Status != StatusNotFound {
			h.logger.Debug("storage request failed",
				zap.String("op", string(req.Op)),
				zap.Error(err),
			)
		}
	}
	return reply
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

func isIO(err error) bool {
	return errors.Is(err, types.ErrStorageIO)
}

func isOutcomeUnknown(err error) bool {
	return errors.Is(err, types.ErrOutcomeUnknown)
}
