// Package records stores named byte records per node.
//
// Persistent nodes use DiskBackend: one file per record under
// <root>/nodes/<node>/records, named by the SHA-256 of the logical name so
// any legal name (up to 2000 bytes) maps to a fixed 64-byte path component.
// Each file carries its logical name, so listings are rebuilt from the files.
//
// Private nodes use MemoryBackend, which never touches disk.
package records

import "github.com/GriffinCanCode/plugstore/internal/shared/types"

// Backend is a per-node record namespace. Names and ids are validated by
// Store before they reach a backend.
type Backend interface {
	Put(id types.NodeID, name string, data []byte) error
	// Get returns ErrNotFound for an absent node or record. A zero-length
	// record is a non-nil empty slice.
	Get(id types.NodeID, name string) ([]byte, error)
	// Delete removes a record; deleting an absent record succeeds.
	Delete(id types.NodeID, name string) error
	ListNames(id types.NodeID) ([]string, error)
	// ClearNode drops the node's whole namespace.
	ClearNode(id types.NodeID) error
}
