package root

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/GriffinCanCode/plugstore/internal/domain/queue"
	"github.com/GriffinCanCode/plugstore/internal/shared/paths"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/charlievieth/fastwalk"
)

// Usage describes what a storage root holds
type Usage struct {
	Bytes        int64 `json:"bytes"`
	Records      int64 `json:"records"`
	Salts        int64 `json:"salts"`
	Nodes        int64 `json:"nodes"`
	PrivateNodes int   `json:"private_nodes"`
	PrivateBytes int64 `json:"private_bytes"`
	Attached     int   `json:"attached"`
}

// Usage reports disk and memory usage
func (r *Root) Usage(ctx context.Context) (Usage, error) {
	if err := r.checkOpen(); err != nil {
		return Usage{}, err
	}
	return queue.Do(ctx, r.queue, func() (Usage, error) {
		u, err := r.diskUsage(ctx)
		if err != nil {
			return Usage{}, err
		}
		u.PrivateNodes = r.memBytes.Nodes()
		u.PrivateBytes = r.memBytes.Bytes()

		r.mu.Lock()
		u.Attached = r.attachedLocked()
		r.mu.Unlock()
		return u, nil
	})
}

// IsStorageEmpty reports whether the root holds no persisted file at all.
// Private-mode activity never makes it false.
func (r *Root) IsStorageEmpty(ctx context.Context) (bool, error) {
	if err := r.checkOpen(); err != nil {
		return false, err
	}
	return queue.Do(ctx, r.queue, func() (bool, error) {
		u, err := r.diskUsage(ctx)
		if err != nil {
			return false, err
		}
		return u.Records == 0 && u.Salts == 0, nil
	})
}

// diskUsage walks the storage directory. A missing directory is empty.
func (r *Root) diskUsage(ctx context.Context) (Usage, error) {
	if _, err := os.Stat(r.layout.Root); errors.Is(err, fs.ErrNotExist) {
		return Usage{}, nil
	}

	var bytes, recs, salts, nodes atomic.Int64
	nodesDir := r.layout.Nodes()

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, r.layout.Root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		if d.IsDir() {
			if filepath.Dir(path) == nodesDir {
				nodes.Add(1)
			}
			return nil
		}
		if paths.IsTemp(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		bytes.Add(info.Size())
		if d.Name() == paths.SaltFile {
			salts.Add(1)
		} else {
			recs.Add(1)
		}
		return nil
	})
	if err != nil {
		return Usage{}, types.IOError("measure usage", r.layout.Root, err)
	}

	return Usage{
		Bytes:   bytes.Load(),
		Records: recs.Load(),
		Salts:   salts.Load(),
		Nodes:   nodes.Load(),
	}, nil
}
