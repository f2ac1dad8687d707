package records

import (
	"errors"
	"fmt"
	"sort"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
)

// Store validates requests and records metrics in front of a Backend
type Store struct {
	backend Backend
	mode    types.Mode
	maxSize int
	metrics *monitoring.Metrics
}

// NewStore wraps backend. maxSize bounds a record's payload.
func NewStore(backend Backend, mode types.Mode, maxSize int, metrics *monitoring.Metrics) *Store {
	if maxSize <= 0 {
		maxSize = types.DefaultMaxRecordSize
	}
	return &Store{backend: backend, mode: mode, maxSize: maxSize, metrics: metrics}
}

// Backend returns the wrapped backend
func (s *Store) Backend() Backend {
	return s.backend
}

// Mode returns the mode label of nodes served by this store
func (s *Store) Mode() types.Mode {
	return s.mode
}

func (s *Store) Put(id types.NodeID, name string, data []byte) (err error) {
	timer := monitoring.NewTimer(s.metrics, "put", s.mode.String())
	defer func() { timer.Stop(status(err), len(data)) }()

	if err := validate(id, name); err != nil {
		return err
	}
	if len(data) > s.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", types.ErrRecordTooLarge, len(data), s.maxSize)
	}
	return s.backend.Put(id, name, data)
}

func (s *Store) Get(id types.NodeID, name string) (data []byte, err error) {
	timer := monitoring.NewTimer(s.metrics, "get", s.mode.String())
	defer func() { timer.Stop(status(err), len(data)) }()

	if err := validate(id, name); err != nil {
		return nil, err
	}
	return s.backend.Get(id, name)
}

func (s *Store) Delete(id types.NodeID, name string) (err error) {
	timer := monitoring.NewTimer(s.metrics, "delete", s.mode.String())
	defer func() { timer.Stop(status(err), -1) }()

	if err := validate(id, name); err != nil {
		return err
	}
	return s.backend.Delete(id, name)
}

// ListNames returns the node's record names sorted
func (s *Store) ListNames(id types.NodeID) (names []string, err error) {
	timer := monitoring.NewTimer(s.metrics, "list", s.mode.String())
	defer func() { timer.Stop(status(err), -1) }()

	if err := id.Validate(); err != nil {
		return nil, err
	}
	names, err = s.backend.ListNames(id)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ClearNode(id types.NodeID) (err error) {
	timer := monitoring.NewTimer(s.metrics, "clear_node", s.mode.String())
	defer func() { timer.Stop(status(err), -1) }()

	if err := id.Validate(); err != nil {
		return err
	}
	return s.backend.ClearNode(id)
}

func validate(id types.NodeID, name string) error {
	if err := id.Validate(); err != nil {
		return err
	}
	return types.ValidateRecordName(name)
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case types.IsClientError(err):
		return "invalid"
	default:
		return "error"
	}
}
