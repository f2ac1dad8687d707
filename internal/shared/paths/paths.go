package paths

import (
	"path/filepath"
	"strings"
)

// Directory and file names under a storage root
const (
	SaltsDir   = "salts"
	NodesDir   = "nodes"
	RecordsDir = "records"
	SaltFile   = "salt.json"

	// TempPrefix marks in-flight writes; readers skip these files.
	TempPrefix = ".tmp-"
)

// Layout resolves paths for one storage root
type Layout struct {
	Root string
}

// New returns a layout rooted at root
func New(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// Salts returns the directory holding all origin-pair salts
func (l Layout) Salts() string {
	return filepath.Join(l.Root, SaltsDir)
}

// SaltDir returns the directory for one origin pair
func (l Layout) SaltDir(pairKey string) string {
	return filepath.Join(l.Root, SaltsDir, pairKey)
}

// SaltFile returns the salt record for one origin pair
func (l Layout) SaltFile(pairKey string) string {
	return filepath.Join(l.Root, SaltsDir, pairKey, SaltFile)
}

// Nodes returns the directory holding all node namespaces
func (l Layout) Nodes() string {
	return filepath.Join(l.Root, NodesDir)
}

// Node returns paths for a specific node
func (l Layout) Node(nodeID string) Node {
	return Node{dir: filepath.Join(l.Root, NodesDir, nodeID)}
}

// Node resolves paths inside a node namespace
type Node struct {
	dir string
}

// Dir returns the node's directory
func (n Node) Dir() string {
	return n.dir
}

// RecordsDir returns the node's record directory
func (n Node) RecordsDir() string {
	return filepath.Join(n.dir, RecordsDir)
}

// Record returns the physical path for an encoded record key
func (n Node) Record(recordKey string) string {
	return filepath.Join(n.dir, RecordsDir, recordKey)
}

// IsTemp reports whether a directory entry is an in-flight write
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// Contains reports whether path lies inside the layout root
func (l Layout) Contains(path string) bool {
	rel, err := filepath.Rel(l.Root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
