// Package root ties the storage components together behind one handle.
//
// A Root owns one storage directory and one serialized queue. Salt lookups,
// record operations, clear-all, forget-site and private-session teardown all
// run on that queue, so they are totally ordered and never race on disk.
// There is no package-level state; several roots can coexist in a process.
package root

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/nodeid"
	"github.com/GriffinCanCode/plugstore/internal/domain/private"
	"github.com/GriffinCanCode/plugstore/internal/domain/queue"
	"github.com/GriffinCanCode/plugstore/internal/domain/records"
	"github.com/GriffinCanCode/plugstore/internal/domain/salt"
	"github.com/GriffinCanCode/plugstore/internal/domain/shutdown"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/config"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/plugstore/internal/shared/paths"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options configures a Root
type Options struct {
	Dir               string
	MaxRecordSize     int
	Compression       bool
	CompressThreshold int
	Fsync             bool
	QueueSize         int
	ShutdownTimeout   time.Duration
	StatsWindow       int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
}

// OptionsFromConfig maps application config onto root options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:               cfg.Storage.Root,
		MaxRecordSize:     cfg.Storage.MaxRecordSize,
		Compression:       cfg.Storage.Compression,
		CompressThreshold: cfg.Storage.CompressThreshold,
		Fsync:             cfg.Storage.Fsync,
		QueueSize:         cfg.Storage.QueueSize,
		ShutdownTimeout:   cfg.Shutdown.Timeout,
		StatsWindow:       cfg.Shutdown.StatsWindow,
		BreakerFailures:   cfg.Breaker.ConsecutiveFailures,
		BreakerTimeout:    cfg.Breaker.OpenTimeout,
	}
}

// nodeInfo is what the root knows about an issued NodeID
type nodeInfo struct {
	mode     types.Mode
	origin   string
	top      string
	epoch    uint64
	attached bool
	// stale nodes lost their salt while attached; purged on release
	stale bool
	// purge nodes belong to an ended private session; purged on release
	purge bool
}

// Root is one storage root
type Root struct {
	layout    paths.Layout
	queue     *queue.Queue
	salts     *salt.Store
	codec     *records.Codec
	disk      *records.Store
	memory    *records.Store
	memBytes  *records.MemoryBackend
	private   *private.Registry
	deriver   *nodeid.Deriver
	shutdowns *shutdown.Coordinator
	breaker   *resilience.Breaker

	mu    sync.Mutex
	known map[types.NodeID]*nodeInfo
	epoch uint64

	closed          atomic.Bool
	shutdownTimeout time.Duration
	maxRecordSize   int

	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// New opens a storage root. The directory is created lazily on first write.
func New(opts Options) (*Root, error) {
	if opts.Dir == "" {
		return nil, errors.New("storage root directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.New("plugstore")
	}
	if opts.MaxRecordSize <= 0 {
		opts.MaxRecordSize = types.DefaultMaxRecordSize
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = shutdown.DefaultTimeout
	}

	logger := opts.Logger.With(zap.String("component", "storage"))
	layout := paths.New(opts.Dir)

	codec, err := records.NewCodec(opts.Compression, opts.CompressThreshold, opts.MaxRecordSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create record codec: %w", err)
	}

	breaker := resilience.New("disk", resilience.Settings{
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: resilience.ConsecutiveFailures(opts.BreakerFailures),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, fs.ErrNotExist) || errors.Is(err, types.ErrNotFound)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			opts.Metrics.RecordBreakerTransition(name, to.String())
		},
	})

	mem := records.NewMemory()
	r := &Root{
		layout: layout,
		queue:  queue.New(opts.QueueSize, logger, opts.Metrics),
		salts: salt.New(layout, salt.Options{
			Fsync:   opts.Fsync,
			Breaker: breaker,
			Logger:  logger,
			Metrics: opts.Metrics,
		}),
		codec: codec,
		disk: records.NewStore(records.NewDisk(layout, codec, records.DiskOptions{
			Fsync:   opts.Fsync,
			Breaker: breaker,
			Logger:  logger,
		}), types.ModePersistent, opts.MaxRecordSize, opts.Metrics),
		memory:          records.NewStore(mem, types.ModePrivate, opts.MaxRecordSize, opts.Metrics),
		memBytes:        mem,
		private:         private.New(),
		deriver:         nodeid.New(),
		breaker:         breaker,
		known:           make(map[types.NodeID]*nodeInfo),
		shutdownTimeout: opts.ShutdownTimeout,
		maxRecordSize:   opts.MaxRecordSize,
		logger:          logger,
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
	}

	r.shutdowns = shutdown.New(shutdown.Options{
		Logger:      logger,
		Metrics:     opts.Metrics,
		StatsWindow: opts.StatsWindow,
		Schedule: func(fn func() error) error {
			_, err := r.queue.Submit(fn)
			return err
		},
		OnRelease: r.onRelease,
	})

	logger.Info("storage root opened",
		zap.String("dir", layout.Root),
		zap.Bool("compression", opts.Compression),
		zap.Bool("fsync", opts.Fsync),
	)
	return r, nil
}

// Dir returns the storage directory
func (r *Root) Dir() string {
	return r.layout.Root
}

// MaxRecordSize returns the largest record payload accepted
func (r *Root) MaxRecordSize() int {
	return r.maxRecordSize
}

// QueueDepth returns the number of storage tasks waiting or running
func (r *Root) QueueDepth() int {
	return r.queue.Len()
}

// BreakerState returns the disk circuit breaker state
func (r *Root) BreakerState() resilience.State {
	return r.breaker.State()
}

// GetNodeID returns the NodeID for an origin pair in mode. Persistent
// lookups may create and persist the pair's salt; private lookups never
// touch disk.
func (r *Root) GetNodeID(ctx context.Context, origin, topLevelOrigin string, mode types.Mode) (id types.NodeID, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.GetNodeID", attribute.String("mode", mode.String()))
	defer func() { tracing.Finish(span, err) }()

	if err := types.ValidateOrigin(origin); err != nil {
		return "", fmt.Errorf("origin: %w", err)
	}
	if err := types.ValidateOrigin(topLevelOrigin); err != nil {
		return "", fmt.Errorf("top-level origin: %w", err)
	}
	if err := r.checkOpen(); err != nil {
		return "", err
	}

	id, err = queue.Do(ctx, r.queue, func() (types.NodeID, error) {
		if mode == types.ModePrivate {
			return r.privateNodeID(origin, topLevelOrigin)
		}
		return r.persistentNodeID(origin, topLevelOrigin)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordNodeIDLookup(mode.String(), status)
	return id, err
}

func (r *Root) persistentNodeID(origin, top string) (types.NodeID, error) {
	secret, created, err := r.salts.GetOrCreate(origin, top)
	if err != nil {
		return "", err
	}
	id, err := r.deriver.Derive(origin, top, types.ModePersistent, secret)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if _, ok := r.known[id]; !ok {
		r.known[id] = &nodeInfo{mode: types.ModePersistent, origin: origin, top: top, epoch: r.epoch}
	}
	r.mu.Unlock()

	if created {
		r.logger.Debug("new persistent node", zap.String("node", id.Short()))
	}
	return id, nil
}

func (r *Root) privateNodeID(origin, top string) (types.NodeID, error) {
	token, err := r.private.GetOrCreateToken(origin, top)
	if err != nil {
		return "", err
	}
	id, err := r.deriver.Derive(origin, top, types.ModePrivate, token)
	if err != nil {
		return "", err
	}
	r.private.Track(id)

	r.mu.Lock()
	if _, ok := r.known[id]; !ok {
		r.known[id] = &nodeInfo{mode: types.ModePrivate, origin: origin, top: top}
	}
	r.mu.Unlock()
	return id, nil
}

// NodeMode returns the mode of a known node
func (r *Root) NodeMode(id types.NodeID) (types.Mode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.known[id]
	if !ok {
		return 0, fmt.Errorf("%w: node %s", types.ErrNotFound, id.Short())
	}
	return info.mode, nil
}

// storeFor resolves the record store for a known node
func (r *Root) storeFor(id types.NodeID) (*records.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.known[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrNotFound, id.Short())
	}
	if info.mode == types.ModePrivate {
		return r.memory, nil
	}
	return r.disk, nil
}

func (r *Root) checkOpen() error {
	if r.closed.Load() {
		return types.ErrClosed
	}
	return nil
}

// Close force-closes every live instance, drains the queue and releases
// resources. Further calls return ErrClosed.
func (r *Root) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return types.ErrClosed
	}

	var errs []error
	if err := r.shutdowns.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("force-close instances: %w", err))
	}
	if err := r.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain storage queue: %w", err))
	}
	r.codec.Close()

	r.logger.Info("storage root closed", zap.String("dir", r.layout.Root))
	return errors.Join(errs...)
}
