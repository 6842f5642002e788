// Package memvfs contains the consumer facing request types and read-only views
// of the in-memory filesystem tree implemented by package filesystem.
package memvfs

import "time"

// NodeInfo provides read-only access to node information for external consumers
type NodeInfo interface {
	// Name returns the node's name (last path component)
	Name() string

	// Path returns the full path to the node starting with the root's name
	Path() string

	// Size returns the byte count; recursive for directories
	Size() int64

	// ModTime returns the last modification time
	ModTime() time.Time
}
