// Package filesystem implements an in-memory, single-rooted tree of files and
// directories addressed by slash separated paths.
//
// The tree performs no locking. Hosts that touch it from several goroutines
// (see package fuse) must serialize every mutator and the [Registry] themselves.
package filesystem

import (
	"strings"
	"time"
	"weak"

	"github.com/google/uuid"
)

// Separator is the path separator. It never appears inside a node name.
const Separator = "/"

// NodeType tags a [Node] as a file or a directory. It never changes after construction.
type NodeType uint8

const (
	FileType NodeType = iota + 1
	DirType
)

func (t NodeType) String() string {
	switch t {
	case FileType:
		return "file"
	case DirType:
		return "dir"
	default:
		return "unknown"
	}
}

// Node is either a [*File] or a [*Directory].
//
// The set of implementations is closed; use a type switch to get at the
// variant specific operations.
type Node interface {
	ID() uuid.UUID
	Name() string
	Type() NodeType
	// Size is the content length for files and the recursive sum for directories
	Size() int64
	// AppliesTo reports whether path is this node's name or starts with name + "/"
	AppliesTo(path string) bool
	// Rename replaces the name in place; parent linkage and sibling order are untouched
	Rename(newName string) error
	// Parent is a non-owning back reference; nil for roots and detached nodes
	Parent() *Directory
	// Path joins the names from the topmost reachable ancestor down to this node
	Path() string

	ModTime() time.Time
	AccessTime() time.Time
	CreateTime() time.Time
	SetModTime(t time.Time)
	SetAccessTime(t time.Time)
	SetCreateTime(t time.Time)
	Perm() uint32
	SetPerm(perm uint32)
	Owner() (uid, gid uint32)
	SetOwner(uid, gid uint32)

	Stat() Stat

	meta() *content
}

// content holds the identity and metadata shared by both node variants
type content struct {
	id       uuid.UUID
	name     string
	nodeType NodeType
	perm     uint32
	uid      uint32
	gid      uint32
	mtime    time.Time
	atime    time.Time
	ctime    time.Time
	// Ownership flows strictly downward; the weak pointer keeps this link
	// from ever holding a directory alive.
	parent weak.Pointer[Directory]
}

func newContent(name string, nodeType NodeType, perm uint32) (content, error) {
	if err := validateName(name); err != nil {
		return content{}, err
	}
	now := time.Now()
	return content{
		id:       uuid.New(),
		name:     name,
		nodeType: nodeType,
		perm:     perm,
		mtime:    now,
		atime:    now,
		ctime:    now,
	}, nil
}

func (c *content) meta() *content { return c }

func (c *content) ID() uuid.UUID { return c.id }
func (c *content) Name() string { return c.name }
func (c *content) Type() NodeType { return c.nodeType }
func (c *content) Parent() *Directory {
	return c.parent.Value()
}

func (c *content) AppliesTo(path string) bool {
	if path == c.name {
		return true
	}
	return strings.HasPrefix(path, c.name+Separator)
}

func (c *content) Rename(newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	c.name = newName
	return nil
}

func (c *content) Path() string {
	if p := c.Parent(); p != nil {
		return p.Path() + Separator + c.name
	}
	return c.name
}

func (c *content) ModTime() time.Time { return c.mtime }
func (c *content) AccessTime() time.Time { return c.atime }
func (c *content) CreateTime() time.Time { return c.ctime }
func (c *content) SetModTime(t time.Time) { c.mtime = t }
func (c *content) SetAccessTime(t time.Time) { c.atime = t }
func (c *content) SetCreateTime(t time.Time) { c.ctime = t }
func (c *content) Perm() uint32 { return c.perm }
func (c *content) SetPerm(perm uint32) { c.perm = perm & 0o7777 }
func (c *content) Owner() (uid, gid uint32) { return c.uid, c.gid }
func (c *content) SetOwner(uid, gid uint32) { c.uid, c.gid = uid, gid }

func (c *content) attach(d *Directory) { c.parent = weak.Make(d) }
func (c *content) detach() { c.parent = weak.Pointer[Directory]{} }

func (c *content) stat(size int64) Stat {
	return Stat{
		ID:         c.id,
		Name:       c.name,
		Type:       c.nodeType,
		Size:       size,
		Perm:       c.perm,
		UID:        c.uid,
		GID:        c.gid,
		ModTime:    c.mtime,
		AccessTime: c.atime,
		CreateTime: c.ctime,
	}
}

// Stat is a snapshot of a node's metadata for stat-like queries.
type Stat struct {
	ID         uuid.UUID
	Name       string
	Type       NodeType
	Size       int64
	Perm       uint32
	UID        uint32
	GID        uint32
	ModTime    time.Time
	AccessTime time.Time
	CreateTime time.Time
}

func (s Stat) IsDir() bool { return s.Type == DirType }

// isAncestor reports whether dir is n or one of n's ancestors
func isAncestor(dir *Directory, n Node) bool {
	for cur := n; cur != nil; {
		if d, ok := cur.(*Directory); ok && d == dir {
			return true
		}
		p := cur.Parent()
		if p == nil {
			return false
		}
		cur = p
	}
	return false
}
