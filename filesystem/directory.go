package filesystem

import (
	"iter"
	"slices"
	"strings"
)

// DefaultDirPerm is the permission set given by [NewDirectory]
const DefaultDirPerm uint32 = 0o755

// Directory owns an ordered list of child nodes. Insertion order is kept and
// nothing is ever sorted. Sibling names are not required to be unique; every
// lookup returns the first match in order.
type Directory struct {
	content
	children []Node
}

var _ Node = (*Directory)(nil)

// NewDirectory creates a detached, empty directory.
// Fails with an *InvalidNameError when name is empty or contains "/".
func NewDirectory(name string) (*Directory, error) {
	c, err := newContent(name, DirType, DefaultDirPerm)
	if err != nil {
		return nil, err
	}
	return &Directory{content: c}, nil
}

// NewDirectoryChain explodes a slash path into a chain of directories where
// each one is the sole child of the previous. A single leading "/" is ignored.
// It returns the topmost (head) and the deepest (leaf) directory of the chain.
func NewDirectoryChain(path string) (head, leaf *Directory, err error) {
	segs := splitPath(path)
	for _, name := range segs {
		dir, err := NewDirectory(name)
		if err != nil {
			return nil, nil, err
		}
		if head == nil {
			head = dir
		} else {
			leaf.AddChild(dir)
		}
		leaf = dir
	}
	return head, leaf, nil
}

// Size is the recursive sum of all children's sizes; 0 when empty.
func (d *Directory) Size() int64 {
	var size int64
	for _, child := range d.children {
		size += child.Size()
	}
	return size
}

func (d *Directory) Stat() Stat {
	return d.stat(d.Size())
}

// AddChild appends node and makes d its owner. No name collision check is
// done. A node still owned by another directory is detached from it first.
func (d *Directory) AddChild(node Node) {
	if prev := node.Parent(); prev != nil {
		prev.removeNode(node)
	}
	d.children = append(d.children, node)
	node.meta().attach(d)
}

// RemoveChild removes the first child that applies to name and reports
// whether one was found. Emptiness of a removed directory is not checked.
func (d *Directory) RemoveChild(name string) bool {
	for i, child := range d.children {
		if !child.AppliesTo(name) {
			continue
		}
		d.children = slices.Delete(d.children, i, i+1)
		child.meta().detach()
		return true
	}
	return false
}

// removeNode removes node by identity
func (d *Directory) removeNode(node Node) bool {
	i := slices.Index(d.children, node)
	if i < 0 {
		return false
	}
	d.children = slices.Delete(d.children, i, i+1)
	node.meta().detach()
	return true
}

// ChildNamed returns the first direct child whose name equals name
func (d *Directory) ChildNamed(name string) (Node, bool) {
	for _, child := range d.children {
		if child.Name() == name {
			return child, true
		}
	}
	return nil, false
}

// Child looks up a descendant by relative path. The path may optionally be
// prefixed with this directory's own name ("foo/bar" and "bar" are the same
// lookup on directory "foo").
func (d *Directory) Child(path string) (Node, bool) {
	rel := path
	if d.AppliesTo(path) {
		rel = strings.TrimPrefix(path[len(d.name):], Separator)
	}
	return d.lookup(rel)
}

// HasChild reports whether [Directory.Child] would find path
func (d *Directory) HasChild(path string) bool {
	_, ok := d.Child(path)
	return ok
}

// Children returns a copy of the child list in insertion order
func (d *Directory) Children() []Node {
	return slices.Clone(d.children)
}

// Len returns the number of direct children
func (d *Directory) Len() int {
	return len(d.children)
}

// Cursor returns a [Cursor] positioned on the first child
func (d *Directory) Cursor() *Cursor {
	return NewCursor(d)
}

// All iterates (name, node) pairs over a snapshot of the children
func (d *Directory) All() iter.Seq2[string, Node] {
	return func(yield func(string, Node) bool) {
		for c := d.Cursor(); c.Valid(); c.Next() {
			if !yield(c.Key(), c.Current()) {
				return
			}
		}
	}
}
