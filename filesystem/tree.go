package filesystem

import (
	"io/fs"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brettbedarf/memvfs/config"
	"github.com/brettbedarf/memvfs/internal/util"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Option configures a [Tree]
type Option func(*Tree)

// WithClock sets the time source used to stamp new nodes and writes
func WithClock(c clock.Clock) Option {
	return func(t *Tree) { t.clock = c }
}

// WithRegistry binds the tree to reg instead of [Default]
func WithRegistry(reg *Registry) Option {
	return func(t *Tree) { t.reg = reg }
}

// Tree performs the structural operations on the tree held by a [Registry].
//
// Expected failures are returned as *fs.PathError values wrapping the
// package's sentinel errors; name violations as *InvalidNameError.
// Like the rest of the package it does no locking.
type Tree struct {
	cfg   *config.Config
	reg   *Registry
	clock clock.Clock
	cache *lru.Cache[string, Node] // nil when disabled
}

func NewTree(cfg *config.Config, opts ...Option) *Tree {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	t := &Tree{cfg: cfg, reg: Default, clock: clock.New()}
	for _, opt := range opts {
		opt(t)
	}
	if cfg.ResolveCacheSize > 0 {
		cache, err := lru.New[string, Node](cfg.ResolveCacheSize)
		if err != nil {
			logger := util.GetLogger("NewTree")
			logger.Warn().Err(err).Int("size", cfg.ResolveCacheSize).Msg("Resolve cache disabled")
		} else {
			t.cache = cache
		}
	}
	return t
}

func (t *Tree) Config() *config.Config { return t.cfg }

func (t *Tree) Registry() *Registry { return t.reg }

// Root returns the registry's active root, nil when there is none
func (t *Tree) Root() *Directory { return t.reg.Root() }

// Now returns the current time of the tree's clock
func (t *Tree) Now() time.Time { return t.clock.Now() }

// Resolve looks path up under the active root.
//
// Cached hits are only returned while [Resolve] would still pick the same
// node, so mutations made directly on a [Directory] are honoured too.
func (t *Tree) Resolve(path string) (Node, bool) {
	r := t.reg.Root()
	if r == nil {
		return nil, false
	}
	key := strings.TrimPrefix(path, Separator)
	if t.cache != nil {
		if n, ok := t.cache.Get(key); ok {
			if n.Path() == key && firstMatch(n, r) {
				return n, true
			}
			t.cache.Remove(key)
		}
	}
	n, ok := Resolve(r, key)
	if ok && t.cache != nil {
		t.cache.Add(key, n)
	}
	return n, ok
}

// CreateDirectory creates the directory at path and returns it.
//
// Without recursive only the final segment may be missing. With recursive
// every missing intermediate directory is created in order. When no root is
// installed the first segment becomes the new root.
func (t *Tree) CreateDirectory(path string, recursive bool) (*Directory, error) {
	logger := util.GetLogger("Tree.CreateDirectory")
	segs := splitPath(path)
	for _, seg := range segs {
		if err := validateName(seg); err != nil {
			return nil, err
		}
	}

	r := t.reg.Root()
	if r == nil {
		if len(segs) > 1 && !recursive {
			return nil, pathError("mkdir", path, ErrNotExist)
		}
		head, leaf, err := t.newDirChain(segs)
		if err != nil {
			return nil, err
		}
		t.reg.SetRoot(head)
		t.purge()
		logger.Debug().Str("path", path).Msg("Created root")
		return leaf, nil
	}
	if segs[0] != r.Name() {
		return nil, pathError("mkdir", path, ErrNotExist)
	}
	// with duplicate sibling names the walk below follows first matches only
	if _, ok := t.Resolve(path); ok {
		return nil, pathError("mkdir", path, ErrExist)
	}

	cur := r
	rest := segs[1:]
	for i, name := range rest {
		child, ok := cur.ChildNamed(name)
		if !ok {
			if !recursive && i < len(rest)-1 {
				return nil, pathError("mkdir", path, ErrNotExist)
			}
			head, leaf, err := t.newDirChain(rest[i:])
			if err != nil {
				return nil, err
			}
			cur.AddChild(head)
			t.purge()
			logger.Debug().Str("path", path).Int("created", len(rest)-i).Msg("Created dir(s)")
			return leaf, nil
		}
		if i == len(rest)-1 {
			break
		}
		dir, ok := child.(*Directory)
		if !ok {
			return nil, pathError("mkdir", path, ErrNotDir)
		}
		cur = dir
	}
	return nil, pathError("mkdir", path, ErrExist)
}

// AddChild attaches node to dir. Sibling names may collide unless the
// config asks for StrictNames.
func (t *Tree) AddChild(dir *Directory, node Node) error {
	if t.cfg.StrictNames {
		if _, ok := dir.ChildNamed(node.Name()); ok {
			return pathError("add", dir.Path()+Separator+node.Name(), ErrExist)
		}
	}
	if d, ok := node.(*Directory); ok && isAncestor(d, dir) {
		return pathError("add", dir.Path(), ErrCycle)
	}
	dir.AddChild(node)
	t.purge()
	return nil
}

// RemoveChild removes the first child of dir that applies to name.
// Emptiness is not checked; see [Tree.RemoveDir].
func (t *Tree) RemoveChild(dir *Directory, name string) bool {
	if !dir.RemoveChild(name) {
		return false
	}
	t.purge()
	return true
}

// Remove unlinks the node at path whatever its type.
// Removing the root clears the registry.
func (t *Tree) Remove(path string) error {
	n, ok := t.Resolve(path)
	if !ok {
		return pathError("remove", path, ErrNotExist)
	}
	t.detach(n)
	return nil
}

// RemoveDir removes the empty directory at path
func (t *Tree) RemoveDir(path string) error {
	n, ok := t.Resolve(path)
	if !ok {
		return pathError("rmdir", path, ErrNotExist)
	}
	dir, ok := n.(*Directory)
	if !ok {
		return pathError("rmdir", path, ErrNotDir)
	}
	if dir.Len() > 0 {
		return pathError("rmdir", path, ErrNotEmpty)
	}
	t.detach(dir)
	return nil
}

// Rename replaces the name of node in place
func (t *Tree) Rename(node Node, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	if p := node.Parent(); p != nil && t.cfg.StrictNames {
		if other, ok := p.ChildNamed(newName); ok && other != node {
			return pathError("rename", p.Path()+Separator+newName, ErrExist)
		}
	}
	if err := node.Rename(newName); err != nil {
		return err
	}
	t.purge()
	return nil
}

// Move relocates the node at oldPath to newPath, replacing a file or an empty
// directory already there. A single segment newPath renames the root.
func (t *Tree) Move(oldPath, newPath string) error {
	src, ok := t.Resolve(oldPath)
	if !ok {
		return pathError("rename", oldPath, ErrNotExist)
	}
	dstPath := strings.TrimPrefix(newPath, Separator)
	idx := strings.LastIndex(dstPath, Separator)
	if idx < 0 {
		if src.Parent() != nil {
			return pathError("rename", newPath, ErrNotExist)
		}
		return t.Rename(src, dstPath)
	}
	parentNode, ok := t.Resolve(dstPath[:idx])
	if !ok {
		return pathError("rename", newPath, ErrNotExist)
	}
	dstParent, ok := parentNode.(*Directory)
	if !ok {
		return pathError("rename", newPath, ErrNotDir)
	}
	_, err := t.MoveNode(src, dstParent, dstPath[idx+1:])
	return err
}

// MoveNode attaches src to dstParent under name. A node already named name
// there is replaced and returned so hosts can drop references to it.
func (t *Tree) MoveNode(src Node, dstParent *Directory, name string) (replaced Node, err error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if d, ok := src.(*Directory); ok && isAncestor(d, dstParent) {
		return nil, pathError("rename", src.Path(), ErrCycle)
	}
	if existing, ok := dstParent.ChildNamed(name); ok && existing != src {
		switch ex := existing.(type) {
		case *Directory:
			if src.Type() != DirType {
				return nil, pathError("rename", ex.Path(), ErrIsDir)
			}
			if ex.Len() > 0 {
				return nil, pathError("rename", ex.Path(), ErrNotEmpty)
			}
		case *File:
			if src.Type() == DirType {
				return nil, pathError("rename", ex.Path(), ErrNotDir)
			}
		}
		dstParent.removeNode(existing)
		replaced = existing
	}
	if err := src.Rename(name); err != nil {
		return nil, err
	}
	if src.Parent() != dstParent {
		dstParent.AddChild(src)
	}
	t.purge()
	return replaced, nil
}

// Mkdir creates the directory name inside parent
func (t *Tree) Mkdir(parent *Directory, name string) (*Directory, error) {
	if _, ok := parent.ChildNamed(name); ok {
		return nil, pathError("mkdir", parent.Path()+Separator+name, ErrExist)
	}
	dir, err := NewDirectory(name)
	if err != nil {
		return nil, err
	}
	t.stamp(dir, t.cfg.DirPerms)
	parent.AddChild(dir)
	t.purge()
	return dir, nil
}

// MakeFile creates the file name inside parent holding a copy of data
func (t *Tree) MakeFile(parent *Directory, name string, data []byte) (*File, error) {
	if _, ok := parent.ChildNamed(name); ok {
		return nil, pathError("create", parent.Path()+Separator+name, ErrExist)
	}
	f, err := NewFile(name, data)
	if err != nil {
		return nil, err
	}
	t.stamp(f, t.cfg.FilePerms)
	parent.AddChild(f)
	t.purge()
	return f, nil
}

// Unlink removes the file name from parent and returns it
func (t *Tree) Unlink(parent *Directory, name string) (Node, error) {
	child, ok := parent.ChildNamed(name)
	if !ok {
		return nil, pathError("unlink", parent.Path()+Separator+name, ErrNotExist)
	}
	if child.Type() == DirType {
		return nil, pathError("unlink", child.Path(), ErrIsDir)
	}
	t.detach(child)
	return child, nil
}

// Rmdir removes the empty directory name from parent and returns it
func (t *Tree) Rmdir(parent *Directory, name string) (Node, error) {
	child, ok := parent.ChildNamed(name)
	if !ok {
		return nil, pathError("rmdir", parent.Path()+Separator+name, ErrNotExist)
	}
	dir, ok := child.(*Directory)
	if !ok {
		return nil, pathError("rmdir", child.Path(), ErrNotDir)
	}
	if dir.Len() > 0 {
		return nil, pathError("rmdir", dir.Path(), ErrNotEmpty)
	}
	t.detach(dir)
	return dir, nil
}

// CreateFile creates a new file at path. The parent directory must exist.
func (t *Tree) CreateFile(path string, data []byte) (*File, error) {
	parent, name, err := t.resolveParent("create", path)
	if err != nil {
		return nil, err
	}
	return t.MakeFile(parent, name, data)
}

// WriteFile replaces the content of the file at path, creating it when the
// parent directory exists.
func (t *Tree) WriteFile(path string, data []byte) error {
	if n, ok := t.Resolve(path); ok {
		f, ok := n.(*File)
		if !ok {
			return pathError("write", path, ErrIsDir)
		}
		f.SetContent(data)
		t.touch(f)
		return nil
	}
	_, err := t.CreateFile(path, data)
	return err
}

// WriteAt writes p into f at off and refreshes its modification time.
// Writes ending past the configured MaxFileSize fail with [ErrTooLarge].
func (t *Tree) WriteAt(f *File, p []byte, off int64) (int, error) {
	if t.tooLarge(off, int64(len(p))) {
		return 0, pathError("write", f.Path(), ErrTooLarge)
	}
	n, err := f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	t.touch(f)
	return n, nil
}

// Truncate resizes f and refreshes its modification time.
// Sizes above the configured MaxFileSize fail with [ErrTooLarge].
func (t *Tree) Truncate(f *File, size int64) error {
	if t.tooLarge(size, 0) {
		return pathError("truncate", f.Path(), ErrTooLarge)
	}
	if err := f.Truncate(size); err != nil {
		return err
	}
	t.touch(f)
	return nil
}

// tooLarge reports whether off+n passes MaxFileSize, overflow included
func (t *Tree) tooLarge(off, n int64) bool {
	limit := t.cfg.MaxFileSize
	if limit <= 0 {
		return false
	}
	return off > limit || n > limit-off
}

// ReadFile returns a copy of the content of the file at path
func (t *Tree) ReadFile(path string) ([]byte, error) {
	n, ok := t.Resolve(path)
	if !ok {
		return nil, pathError("read", path, ErrNotExist)
	}
	f, ok := n.(*File)
	if !ok {
		return nil, pathError("read", path, ErrIsDir)
	}
	return f.Content(), nil
}

func (t *Tree) Stat(path string) (Stat, error) {
	n, ok := t.Resolve(path)
	if !ok {
		return Stat{}, pathError("stat", path, ErrNotExist)
	}
	return n.Stat(), nil
}

func (t *Tree) Exists(path string) bool {
	_, ok := t.Resolve(path)
	return ok
}

func (t *Tree) IsDir(path string) bool {
	n, ok := t.Resolve(path)
	return ok && n.Type() == DirType
}

func (t *Tree) IsFile(path string) bool {
	n, ok := t.Resolve(path)
	return ok && n.Type() == FileType
}

// resolveParent resolves every segment of path but the last one, which is
// returned as name.
func (t *Tree) resolveParent(op, path string) (parent *Directory, name string, err error) {
	trimmed := strings.TrimPrefix(path, Separator)
	idx := strings.LastIndex(trimmed, Separator)
	if idx < 0 {
		return nil, "", pathError(op, path, ErrNotExist)
	}
	name = trimmed[idx+1:]
	if err := validateName(name); err != nil {
		return nil, "", err
	}
	n, ok := t.Resolve(trimmed[:idx])
	if !ok {
		return nil, "", pathError(op, path, ErrNotExist)
	}
	parent, ok = n.(*Directory)
	if !ok {
		return nil, "", pathError(op, path, ErrNotDir)
	}
	return parent, name, nil
}

// detach removes n from its owner. For the active root the registry is cleared.
func (t *Tree) detach(n Node) {
	logger := util.GetLogger("Tree.detach")
	if p := n.Parent(); p != nil {
		p.removeNode(n)
	} else if t.reg.RemoveRoot(n.Name()) {
		logger.Debug().Str("name", n.Name()).Msg("Active root removed")
	}
	t.purge()
}

// newDirChain builds a directory chain for segs stamped with the tree's
// clock and directory permissions.
func (t *Tree) newDirChain(segs []string) (head, leaf *Directory, err error) {
	head, leaf, err = NewDirectoryChain(strings.Join(segs, Separator))
	if err != nil {
		return nil, nil, err
	}
	for cur := head; ; {
		t.stamp(cur, t.cfg.DirPerms)
		if len(cur.children) == 0 {
			break
		}
		cur = cur.children[0].(*Directory)
	}
	return head, leaf, nil
}

// stamp gives a freshly built node the tree's time and permissions
func (t *Tree) stamp(n Node, perm uint32) {
	now := t.clock.Now()
	n.SetCreateTime(now)
	n.SetModTime(now)
	n.SetAccessTime(now)
	n.SetPerm(perm)
}

func (t *Tree) touch(n Node) {
	if t.cfg.TouchOnWrite {
		n.SetModTime(t.clock.Now())
	}
}

// firstMatch reports whether n hangs below r through ancestors that are each
// the first child of their name. Sibling names other than the path segment
// never match, so that chain is exactly the one lookup descends.
func firstMatch(n Node, r *Directory) bool {
	cur := n
	for {
		p := cur.Parent()
		if p == nil {
			return cur == Node(r)
		}
		if first, _ := p.ChildNamed(cur.Name()); first != cur {
			return false
		}
		cur = p
	}
}

func (t *Tree) purge() {
	if t.cache != nil {
		t.cache.Purge()
	}
}

func pathError(op, path string, err error) error {
	return &fs.PathError{Op: op, Path: path, Err: err}
}

