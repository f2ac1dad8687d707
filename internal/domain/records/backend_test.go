package records

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/GriffinCanCode/plugstore/internal/shared/paths"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nodeA = types.NodeID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	nodeB = types.NodeID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func newDisk(t *testing.T) (*DiskBackend, paths.Layout) {
	t.Helper()
	layout := paths.New(t.TempDir())
	return NewDisk(layout, newCodec(t, true), DiskOptions{}), layout
}

func backends(t *testing.T) map[string]Backend {
	disk, _ := newDisk(t)
	return map[string]Backend{
		"disk":   disk,
		"memory": NewMemory(),
	}
}

func TestBackendContract(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(nodeA, "missing")
			assert.ErrorIs(t, err, types.ErrNotFound)

			names, err := b.ListNames(nodeA)
			require.NoError(t, err)
			assert.Empty(t, names)

			require.NoError(t, b.Put(nodeA, "k", []byte("v1")))
			require.NoError(t, b.Put(nodeA, "k", []byte("v2")))
			data, err := b.Get(nodeA, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), data)

			require.NoError(t, b.Put(nodeA, "empty", nil))
			data, err = b.Get(nodeA, "empty")
			require.NoError(t, err)
			assert.NotNil(t, data)
			assert.Empty(t, data)

			// isolation
			_, err = b.Get(nodeB, "k")
			assert.ErrorIs(t, err, types.ErrNotFound)

			require.NoError(t, b.Delete(nodeA, "k"))
			require.NoError(t, b.Delete(nodeA, "k"))
			_, err = b.Get(nodeA, "k")
			assert.ErrorIs(t, err, types.ErrNotFound)

			require.NoError(t, b.ClearNode(nodeA))
			_, err = b.Get(nodeA, "empty")
			assert.ErrorIs(t, err, types.ErrNotFound)
			require.NoError(t, b.ClearNode(nodeA))
		})
	}
}

func TestBackendHundredRecords(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			var want []string
			for i := 0; i < 100; i++ {
				n := fmt.Sprintf("data%02d", i)
				want = append(want, n)
				require.NoError(t, b.Put(nodeA, n, []byte(n)))
			}
			got, err := b.ListNames(nodeA)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, got)
		})
	}
}

func TestBackendReturnsCopies(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			src := []byte("abc")
			require.NoError(t, b.Put(nodeA, "k", src))
			src[0] = 'z'

			got, err := b.Get(nodeA, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), got)

			got[1] = 'z'
			again, err := b.Get(nodeA, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), again)
		})
	}
}

func TestBackendConcurrentLastWriterWins(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			values := map[string]bool{}
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				v := strings.Repeat(fmt.Sprint(i), 4096)
				values[v] = true
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = b.Put(nodeA, "k", []byte(v))
				}()
			}
			wg.Wait()

			got, err := b.Get(nodeA, "k")
			require.NoError(t, err)
			assert.True(t, values[string(got)], "read must observe one complete write")
		})
	}
}

func TestDiskLongNamePhysicalKey(t *testing.T) {
	disk, layout := newDisk(t)

	long := strings.Repeat("x", types.MaxRecordNameSize)
	require.NoError(t, disk.Put(nodeA, long, []byte("v")))

	entries, err := os.ReadDir(layout.Node(nodeA.String()).RecordsDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Name(), 64)

	got, err := disk.Get(nodeA, long)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	names, err := disk.ListNames(nodeA)
	require.NoError(t, err)
	assert.Equal(t, []string{long}, names)
}

func TestDiskNameMismatchIsNotFound(t *testing.T) {
	disk, layout := newDisk(t)
	require.NoError(t, disk.Put(nodeA, "real", []byte("v")))

	// simulate a colliding key by moving the file under another name's key
	dir := layout.Node(nodeA.String())
	require.NoError(t, os.Rename(dir.Record(disk.RecordKey("real")), dir.Record(disk.RecordKey("other"))))

	_, err := disk.Get(nodeA, "other")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDiskCorruptRecordIsIOError(t *testing.T) {
	disk, layout := newDisk(t)
	require.NoError(t, disk.Put(nodeA, "k", []byte("v")))

	path := layout.Node(nodeA.String()).Record(disk.RecordKey("k"))
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff}, 0o644))

	_, err := disk.Get(nodeA, "k")
	assert.ErrorIs(t, err, types.ErrStorageIO)
}

func TestDiskIgnoresTempFiles(t *testing.T) {
	disk, layout := newDisk(t)
	require.NoError(t, disk.Put(nodeA, "k", []byte("v")))

	tmp := filepath.Join(layout.Node(nodeA.String()).RecordsDir(), paths.TempPrefix+"123")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))

	names, err := disk.ListNames(nodeA)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, names)
}

func TestDiskClearNodeRemovesDirectory(t *testing.T) {
	disk, layout := newDisk(t)
	require.NoError(t, disk.Put(nodeA, "k", []byte("v")))
	require.NoError(t, disk.ClearNode(nodeA))

	_, err := os.Stat(layout.Nodes())
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryNeverTouchesDisk(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	m := NewMemory()
	require.NoError(t, m.Put(nodeA, "k", []byte("v")))
	assert.Equal(t, 1, m.Nodes())
	assert.Equal(t, int64(1), m.Bytes())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
