// Package paths provides the on-disk layout of a storage root.
//
// All filesystem access to a storage root resolves paths through a Layout so
// the directory structure is defined in exactly one place.
//
// # Directory Structure
//
//	<root>/
//	  ├── salts/
//	  │   └── <pair-key>/salt.json   (one per origin pair)
//	  └── nodes/
//	      └── <node-id>/
//	          └── records/<record-key>
//
// Pair keys and record keys are fixed-length hex digests, and node ids are
// validated hex, so no path component depends on caller-supplied length.
//
// # Usage
//
//	layout := paths.New("/var/lib/plugstore")
//	node := layout.Node(string(nodeID))
//	file := node.Record(key)
package paths
