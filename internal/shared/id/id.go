// Package id provides centralized ID generation for the storage engine.
//
// IDs are prefixed ULIDs:
//   - Lexicographic sortability: private sessions and instances sort by creation
//   - Prefixed types: pbs_*, inst_*, req_* make logs readable
//   - Type safety: separate types prevent mixing a session id with an instance id
//
// Node ids are not generated here; they are derived (see domain/nodeid).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// SessionID identifies a private-browsing session
type SessionID string

// InstanceID identifies a live plugin instance
type InstanceID string

// RequestID identifies an API request
type RequestID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	SessionPrefix  = "pbs"
	InstancePrefix = "inst"
	RequestPrefix  = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewSessionID generates a new private session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewInstanceID generates a new plugin instance ID
func NewInstanceID() InstanceID {
	return InstanceID(Default().GenerateWithPrefix(InstancePrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string  { return string(id) }
func (id InstanceID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
