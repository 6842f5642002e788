package memvfs

import (
	"context"
	"time"
)

// NodeRequest has common fields embedded in concrete request types.
// Zero values mean "use the tree's default" for that field.
type NodeRequest struct {
	Path     string // Path relative to the tree's root i.e. "docs/readme.txt"
	Type     NodeCreateRequestType
	UUID     string    // Optional UUID to pin the node's identity
	Atime    time.Time // Last Accessed at
	Mtime    time.Time // Last Modified at
	Ctime    time.Time // Created at (Default current time)
	Perms    uint32    // i.e. 0755
	OwnerUID uint32
	OwnerGID uint32
}

// NodeCreateRequestType valid types are FileNodeType "file", DirNodeType "dir"
type NodeCreateRequestType string

const (
	FileNodeType NodeCreateRequestType = "file"
	DirNodeType  NodeCreateRequestType = "dir"
)

// FileCreateRequest creates a file. Content is used when non-nil, otherwise
// Sources are tried in ascending Priority until one produces the bytes.
type FileCreateRequest struct {
	NodeRequest
	Content []byte
	Sources []FileSource
}

type DirCreateRequest struct {
	NodeRequest
}

// ContentSource produces the initial bytes of a file node.
// The bytes are copied into the tree once; the tree never calls back into a source.
type ContentSource interface {
	Content(ctx context.Context) ([]byte, error)
}

// FileSource is a container for concrete content sources that can be
// passed to the core filesystem
type FileSource struct {
	ContentSource
	Priority int // Lower number = higher priority
}
