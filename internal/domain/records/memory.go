package records

import (
	"sync"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
)

// MemoryBackend keeps records in process memory only
type MemoryBackend struct {
	mu    sync.RWMutex
	nodes map[types.NodeID]map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemory creates an empty memory backend
func NewMemory() *MemoryBackend {
	return &MemoryBackend{nodes: make(map[types.NodeID]map[string][]byte)}
}

func (m *MemoryBackend) Put(id types.NodeID, name string, data []byte) error {
	// stored values are never mutated, readers get their own copy
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.nodes[id]
	if !ok {
		ns = make(map[string][]byte)
		m.nodes[id] = ns
	}
	ns[name] = stored
	return nil
}

func (m *MemoryBackend) Get(id types.NodeID, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.nodes[id][name]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryBackend) Delete(id types.NodeID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, ok := m.nodes[id]; ok {
		delete(ns, name)
	}
	return nil
}

func (m *MemoryBackend) ListNames(id types.NodeID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.nodes[id]
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryBackend) ClearNode(id types.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	return nil
}

// Nodes returns the number of nodes holding at least one namespace
func (m *MemoryBackend) Nodes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Bytes returns the total payload size held in memory
func (m *MemoryBackend) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, ns := range m.nodes {
		for _, data := range ns {
			total += int64(len(data))
		}
	}
	return total
}
