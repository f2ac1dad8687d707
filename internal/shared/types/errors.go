package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrigin  = errors.New("invalid origin")
	ErrInvalidName    = errors.New("invalid record name")
	ErrInvalidNodeID  = errors.New("invalid node id")
	ErrRecordTooLarge = errors.New("record too large")
	ErrNotFound       = errors.New("not found")
	ErrStorageIO      = errors.New("storage i/o failure")
	ErrClosed         = errors.New("storage root is closed")
	ErrNodeBusy       = errors.New("node already has an attached instance")
	ErrNotAttached    = errors.New("node has no attached instance")
	// ErrOutcomeUnknown: the task was accepted but the caller stopped
	// waiting; it may still have been applied.
	ErrOutcomeUnknown = errors.New("operation outcome unknown")
)

// StorageIOError reports a disk failure while touching salts or records
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() []error {
	return []error{ErrStorageIO, e.Err}
}

// IOError wraps err as a StorageIOError unless it is nil
func IOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *StorageIOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &StorageIOError{Op: op, Path: path, Err: err}
}

// IsClientError reports whether err was caused by invalid caller input
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidOrigin) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidNodeID) ||
		errors.Is(err, ErrRecordTooLarge)
}
