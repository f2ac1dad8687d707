// Package salt persists one random salt per (origin, top-level origin) pair.
//
// The salt keys the persistent NodeID derivation, so a pair keeps its NodeID
// across restarts until the salt is removed (clear-all or forget-site).
package salt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/plugstore/internal/shared/paths"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Entry is the on-disk salt record
type Entry struct {
	Origin         string    `json:"origin"`
	TopLevelOrigin string    `json:"top_level_origin"`
	Salt           []byte    `json:"salt"`
	CreatedAt      time.Time `json:"created_at"`
}

// Options configures a Store
type Options struct {
	Fsync   bool
	Breaker *resilience.Breaker
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// Rand overrides the salt source; crypto/rand when nil
	Rand io.Reader
}

// Store maps origin pairs to salts, caching them in memory
type Store struct {
	layout  paths.Layout
	hasher  *utils.Hasher
	fsync   bool
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
	rand    io.Reader

	mu    sync.Mutex
	cache map[string]Entry
}

// New creates a salt store under layout
func New(layout paths.Layout, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	return &Store{
		layout:  layout,
		hasher:  utils.NewHasher(utils.SHA256),
		fsync:   opts.Fsync,
		breaker: opts.Breaker,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		rand:    opts.Rand,
		cache:   make(map[string]Entry),
	}
}

// PairKey returns the directory name for an origin pair
func (s *Store) PairKey(origin, topLevelOrigin string) string {
	return s.hasher.HashFields(origin, topLevelOrigin)
}

// GetOrCreate returns the pair's salt, creating and persisting one on first
// use. created reports whether this call made it. Callers serialize
// GetOrCreate for a given pair; the store does not guard against two
// concurrent first calls racing on disk.
func (s *Store) GetOrCreate(origin, topLevelOrigin string) (salt []byte, created bool, err error) {
	key := s.PairKey(origin, topLevelOrigin)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.cache[key]; ok {
		return e.Salt, false, nil
	}

	e, err := s.load(key, origin, topLevelOrigin)
	switch {
	case err == nil:
		s.cache[key] = e
		return e.Salt, false, nil
	case !errors.Is(err, types.ErrNotFound):
		return nil, false, err
	}

	e = Entry{
		Origin:         origin,
		TopLevelOrigin: topLevelOrigin,
		Salt:           make([]byte, types.SaltLength),
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := io.ReadFull(s.rand, e.Salt); err != nil {
		return nil, false, fmt.Errorf("generate salt: %w", err)
	}

	data, err := sonic.Marshal(&e)
	if err != nil {
		return nil, false, fmt.Errorf("encode salt: %w", err)
	}

	path := s.layout.SaltFile(key)
	if err := s.breaker.Run(func() error {
		return paths.WriteFileAtomic(path, data, s.fsync)
	}); err != nil {
		return nil, false, types.IOError("write salt", path, err)
	}

	s.cache[key] = e
	s.metrics.IncSaltsCreated()
	s.logger.Debug("salt created",
		zap.String("origin", origin),
		zap.String("top_level_origin", topLevelOrigin),
		zap.String("pair", utils.ShortHash(key, 12)),
	)
	return e.Salt, true, nil
}

// load reads a pair's salt file. A missing file is ErrNotFound. An
// unreadable or malformed file is an I/O error so the pair's NodeID never
// silently changes.
func (s *Store) load(key, origin, topLevelOrigin string) (Entry, error) {
	path := s.layout.SaltFile(key)

	data, err := resilience.Call(s.breaker, func() ([]byte, error) {
		return os.ReadFile(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, types.ErrNotFound
		}
		return Entry{}, types.IOError("read salt", path, err)
	}

	var e Entry
	if err := sonic.Unmarshal(data, &e); err != nil {
		return Entry{}, types.IOError("decode salt", path, err)
	}
	if len(e.Salt) != types.SaltLength {
		return Entry{}, types.IOError("decode salt", path, fmt.Errorf("salt is %d bytes", len(e.Salt)))
	}
	if e.Origin != origin || e.TopLevelOrigin != topLevelOrigin {
		return Entry{}, types.IOError("decode salt", path, errors.New("salt belongs to a different origin pair"))
	}
	return e, nil
}

// List returns every persisted salt entry. Unreadable entries are skipped
// and logged.
func (s *Store) List() ([]Entry, error) {
	dir := s.layout.Salts()

	dirents, err := resilience.Call(s.breaker, func() ([]os.DirEntry, error) {
		return os.ReadDir(dir)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, types.IOError("list salts", dir, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() || paths.IsTemp(d.Name()) {
			continue
		}
		path := s.layout.SaltFile(d.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable salt", zap.String("path", path), zap.Error(err))
			continue
		}
		var e Entry
		if err := sonic.Unmarshal(data, &e); err != nil {
			s.logger.Warn("skipping malformed salt", zap.String("path", path), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Remove deletes a pair's salt. Removing an absent salt is not an error.
func (s *Store) Remove(origin, topLevelOrigin string) error {
	key := s.PairKey(origin, topLevelOrigin)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, key)

	dir := s.layout.SaltDir(key)
	if err := s.breaker.Run(func() error { return os.RemoveAll(dir) }); err != nil {
		return types.IOError("remove salt", dir, err)
	}
	return nil
}

// Reset drops the in-memory cache. Call it after the salt directory has
// been wiped externally.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]Entry)
}

// Cached returns the number of cached salts
func (s *Store) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
