package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/shutdown"
	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultOpTimeout bounds a single storage request served for an instance
const DefaultOpTimeout = 10 * time.Second

// ErrUnknownInstance is returned for an instance id the manager never saw
var ErrUnknownInstance = errors.New("unknown plugin instance")

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Logger    *zap.Logger
	OpTimeout time.Duration
	// Forward receives session messages and unknown events
	Forward ForwardFunc
}

// Manager launches instances and tracks their hosts
type Manager struct {
	mu      sync.RWMutex
	hosts   map[id.InstanceID]*Host
	storage Storage
	opts    ManagerOptions
	logger  *zap.Logger
}

// Info describes a live instance
type Info struct {
	InstanceID     id.InstanceID `json:"instance_id"`
	NodeID         types.NodeID  `json:"node_id"`
	Origin         string        `json:"origin"`
	TopLevelOrigin string        `json:"top_level_origin"`
	Mode           string        `json:"mode"`
	StartedAt      time.Time     `json:"started_at"`
}

// NewManager creates a manager on top of storage
func NewManager(storage Storage, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &Manager{
		hosts:   make(map[id.InstanceID]*Host),
		storage: storage,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Launch derives the node for the origin pair, attaches inst to it and
// starts serving its events. inst is closed if it cannot be attached.
func (m *Manager) Launch(ctx context.Context, origin, topLevelOrigin string, mode types.Mode, inst Instance) (*Host, error) {
	node, err := m.storage.GetNodeID(ctx, origin, topLevelOrigin, mode)
	if err != nil {
		_ = inst.Close()
		return nil, err
	}

	h := &Host{
		node:       node,
		instanceID: id.NewInstanceID(),
		origin:     origin,
		top:        topLevelOrigin,
		mode:       mode,
		startedAt:  time.Now(),
		inst:       inst,
		storage:    m.storage,
		forward:    m.opts.Forward,
		opTimeout:  m.opts.OpTimeout,
		done:       make(chan struct{}),
	}
	h.logger = m.logger.With(
		zap.String("instance", h.instanceID.String()),
		zap.String("node", node.Short()),
	)

	if err := m.storage.Attach(ctx, node, h); err != nil {
		_ = inst.Close()
		return nil, err
	}

	m.mu.Lock()
	m.hosts[h.instanceID] = h
	m.mu.Unlock()

	go func() {
		h.run()
		m.mu.Lock()
		delete(m.hosts, h.instanceID)
		m.mu.Unlock()
		h.logger.Debug("plugin instance detached")
	}()

	h.logger.Info("plugin instance attached",
		zap.String("origin", origin),
		zap.String("top_level_origin", topLevelOrigin),
		zap.String("mode", mode.String()),
	)
	return h, nil
}

// Host returns the live host for an instance id
func (m *Manager) Host(instanceID id.InstanceID) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hosts[instanceID]
	return h, ok
}

// List returns the live instances ordered by start time
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.hosts))
	for _, h := range m.hosts {
		infos = append(infos, h.info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].InstanceID < infos[j].InstanceID
	})
	return infos
}

// Count returns the number of live instances
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}

// Shutdown asks an instance to shut down and returns its shutdown future
func (m *Manager) Shutdown(instanceID id.InstanceID, timeout time.Duration) (*shutdown.Future, error) {
	h, ok := m.Host(instanceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	return m.storage.BeginShutdown(h.node, timeout)
}

// ShutdownAll starts shutdown on every live instance at once, then waits
// for all outcomes
func (m *Manager) ShutdownAll(ctx context.Context, timeout time.Duration) error {
	m.mu.RLock()
	hosts := make([]*Host, 0, len(m.hosts))
	for _, h := range m.hosts {
		hosts = append(hosts, h)
	}
	m.mu.RUnlock()

	var errs []error
	futures := make([]*shutdown.Future, 0, len(hosts))
	for _, h := range hosts {
		f, err := m.storage.BeginShutdown(h.node, timeout)
		if err != nil {
			// already gone
			if errors.Is(err, types.ErrNotAttached) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		futures = append(futures, f)
	}
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, err)
			return errors.Join(errs...)
		}
	}
	for _, h := range hosts {
		select {
		case <-h.done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) info() Info {
	return Info{
		InstanceID:     h.instanceID,
		NodeID:         h.node,
		Origin:         h.origin,
		TopLevelOrigin: h.top,
		Mode:           h.mode.String(),
		StartedAt:      h.startedAt,
	}
}
