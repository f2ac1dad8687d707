package records

import (
	"errors"
	"io/fs"
	"os"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/plugstore/internal/shared/paths"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
	"go.uber.org/zap"
)

// DiskOptions configures a DiskBackend
type DiskOptions struct {
	Fsync   bool
	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// DiskBackend stores records as files under a storage root
type DiskBackend struct {
	layout  paths.Layout
	codec   *Codec
	hasher  *utils.Hasher
	fsync   bool
	breaker *resilience.Breaker
	logger  *zap.Logger
}

var _ Backend = (*DiskBackend)(nil)

// NewDisk creates a disk backend
func NewDisk(layout paths.Layout, codec *Codec, opts DiskOptions) *DiskBackend {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &DiskBackend{
		layout:  layout,
		codec:   codec,
		hasher:  utils.NewHasher(utils.SHA256),
		fsync:   opts.Fsync,
		breaker: opts.Breaker,
		logger:  opts.Logger,
	}
}

// RecordKey returns the physical file name for a logical record name
func (d *DiskBackend) RecordKey(name string) string {
	return d.hasher.HashString(name)
}

func (d *DiskBackend) Put(id types.NodeID, name string, data []byte) error {
	path := d.layout.Node(id.String()).Record(d.RecordKey(name))
	encoded := d.codec.Encode(name, data)

	if err := d.breaker.Run(func() error {
		return paths.WriteFileAtomic(path, encoded, d.fsync)
	}); err != nil {
		return types.IOError("write record", path, err)
	}
	return nil
}

func (d *DiskBackend) Get(id types.NodeID, name string) ([]byte, error) {
	path := d.layout.Node(id.String()).Record(d.RecordKey(name))

	raw, err := resilience.Call(d.breaker, func() ([]byte, error) {
		return os.ReadFile(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.ErrNotFound
		}
		return nil, types.IOError("read record", path, err)
	}

	stored, data, err := d.codec.Decode(raw)
	if err != nil {
		return nil, types.IOError("decode record", path, err)
	}
	if stored != name {
		d.logger.Warn("record key collision",
			zap.String("node", id.Short()),
			zap.String("path", path),
		)
		return nil, types.ErrNotFound
	}
	return data, nil
}

func (d *DiskBackend) Delete(id types.NodeID, name string) error {
	path := d.layout.Node(id.String()).Record(d.RecordKey(name))

	err := d.breaker.Run(func() error {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
	if err != nil {
		return types.IOError("delete record", path, err)
	}
	return nil
}

func (d *DiskBackend) ListNames(id types.NodeID) ([]string, error) {
	dir := d.layout.Node(id.String()).RecordsDir()

	dirents, err := resilience.Call(d.breaker, func() ([]os.DirEntry, error) {
		return os.ReadDir(dir)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, types.IOError("list records", dir, err)
	}

	names := make([]string, 0, len(dirents))
	for _, e := range dirents {
		if e.IsDir() || paths.IsTemp(e.Name()) {
			continue
		}
		path := d.layout.Node(id.String()).Record(e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, types.IOError("read record", path, err)
		}
		name, err := d.codec.DecodeName(raw)
		if err != nil {
			d.logger.Warn("skipping malformed record", zap.String("path", path), zap.Error(err))
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (d *DiskBackend) ClearNode(id types.NodeID) error {
	dir := d.layout.Node(id.String()).Dir()
	if err := d.breaker.Run(func() error { return os.RemoveAll(dir) }); err != nil {
		return types.IOError("clear node", dir, err)
	}
	paths.RemoveEmptyParents(d.layout.Nodes(), d.layout.Root)
	return nil
}
