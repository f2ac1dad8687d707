package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Size limits
const (
	MaxOriginLength      = 2048
	MaxRecordNameSize    = 2000
	DefaultMaxRecordSize = 16 * 1024 * 1024
	NodeIDLength         = 64
	SaltLength           = 32
)

// Mode selects where a node's data lives
type Mode int

const (
	ModePersistent Mode = iota
	ModePrivate
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModePersistent:
		return "persistent"
	case ModePrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ParseMode converts a string into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "persistent":
		return ModePersistent, nil
	case "private", "pb", "private-browsing":
		return ModePrivate, nil
	default:
		return ModePersistent, fmt.Errorf("unknown mode %q", s)
	}
}

// NodeID identifies the isolation unit for plugin storage
type NodeID string

// String returns the node id as a string
func (id NodeID) String() string { return string(id) }

// Validate checks that the id is 64 lowercase hex characters, which keeps it
// usable as a single path component.
func (id NodeID) Validate() error {
	if len(id) != NodeIDLength {
		return fmt.Errorf("%w: length %d", ErrInvalidNodeID, len(id))
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidNodeID, c)
		}
	}
	return nil
}

// Short returns an abbreviated id for logs
func (id NodeID) Short() string {
	if len(id) < 12 {
		return string(id)
	}
	return string(id[:12])
}

// ValidateOrigin rejects empty, oversized or malformed origin strings
func ValidateOrigin(origin string) error {
	if origin == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOrigin)
	}
	if len(origin) > MaxOriginLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidOrigin, len(origin), MaxOriginLength)
	}
	if !utf8.ValidString(origin) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidOrigin)
	}
	for _, r := range origin {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control character", ErrInvalidOrigin)
		}
	}
	return nil
}

// ValidateRecordName enforces the record name bounds
func ValidateRecordName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxRecordNameSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidName, len(name), MaxRecordNameSize)
	}
	return nil
}

// ShutdownOutcome is the terminal state of a shutdown
type ShutdownOutcome int

const (
	OutcomeClosed ShutdownOutcome = iota
	OutcomeForceClosed
)

// String returns the string representation of the outcome
func (o ShutdownOutcome) String() string {
	switch o {
	case OutcomeClosed:
		return "closed"
	case OutcomeForceClosed:
		return "force_closed"
	default:
		return "unknown"
	}
}

// NodeState tracks a live node through shutdown
type NodeState int

const (
	StateActive NodeState = iota
	StateShutdownRequested
	StateClosed
	StateForceClosed
)

// String returns the string representation of the state
func (s NodeState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateShutdownRequested:
		return "shutdown_requested"
	case StateClosed:
		return "closed"
	case StateForceClosed:
		return "force_closed"
	default:
		return "unknown"
	}
}
