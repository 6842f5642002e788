package requests

import (
	"time"

	"github.com/brettbedarf/memvfs"
)

// NodeRequestDTO is the JSON representation of [memvfs.NodeRequest]
type NodeRequestDTO struct {
	Path     string                       `json:"path"`
	Type     memvfs.NodeCreateRequestType `json:"type"`
	UUID     *string                      `json:"uuid,omitempty"`  // Optional UUID to pin the node's identity
	Atime    *time.Time                   `json:"atime,omitempty"` // Last Accessed at (Default tree clock)
	Mtime    *time.Time                   `json:"mtime,omitempty"` // Last Modified at (Default tree clock)
	Ctime    *time.Time                   `json:"ctime,omitempty"` // Created at (Default tree clock)
	Perms    *uint32                      `json:"perms,omitempty"` // i.e. 0755 (Default from config)
	OwnerUID *uint32                      `json:"owner_uid,omitempty"`
	OwnerGID *uint32                      `json:"owner_gid,omitempty"`
}

// FileRequestDTO is the JSON representation of [memvfs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	Content *string           `json:"content,omitempty"` // Inline text; wins over sources
	Sources []SourceConfigDTO `json:"sources"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}

// SourceConfigDTO is the JSON representation of static source fields
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [adapters.HTTPSource]):
//
//	URL     string            `json:"url"`
//	Method  *string           `json:"method,omitempty"`
//	Headers map\[string\]string `json:"headers,omitempty"`
//
// See adapters package for built-ins complete field specifications.
type SourceConfigDTO struct {
	Type     string `json:"type"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}
