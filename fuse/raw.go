// Package fuse bridges the kernel FUSE wire protocol onto a filesystem.Tree.
package fuse

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/brettbedarf/memvfs/config"
	"github.com/brettbedarf/memvfs/filesystem"
	"github.com/brettbedarf/memvfs/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// rename(2) flags as sent by the kernel in RenameIn.Flags
const (
	renameNoReplace = 1 << 0
	renameExchange  = 1 << 1
)

// freeInodes is the number of files reported as available by StatFs
const freeInodes = 1 << 20

// handle is an open file or directory
type handle struct {
	node   filesystem.Node
	flags  uint32
	cursor *filesystem.Cursor // directories only
}

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and core filesystem
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
//
// The tree itself does no locking. Every operation runs inside a
// [NodeContext] that holds mu for reading or writing.
type FuseRaw struct {
	gofuse.RawFileSystem
	tree   *filesystem.Tree
	cfg    *config.Config
	mu     sync.RWMutex
	ids    *nodeIDs
	lastFh atomic.Uint64
	fhs    *xsync.Map[uint64, *handle]
	server *gofuse.Server
}

func NewFuseRaw(tree *filesystem.Tree) *FuseRaw {
	return &FuseRaw{
		RawFileSystem: gofuse.NewDefaultRawFileSystem(),
		tree:          tree,
		cfg:           tree.Config(),
		ids:           newNodeIDs(),
		fhs:           xsync.NewMap[uint64, *handle](),
	}
}

// View runs fn with the tree read-locked
func (r *FuseRaw) View(fn func(*filesystem.Tree) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.tree)
}

// Update runs fn with the tree write-locked
func (r *FuseRaw) Update(fn func(*filesystem.Tree) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.tree)
}

func (r *FuseRaw) Init(s *gofuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// Access called when the kernel wants to know if the user has permission to access the node.
// If the 'default_permissions' mount option is given, this method is not called.
// Permission bits are stored but not enforced, so any existing node is accessible.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *gofuse.AccessIn) gofuse.Status {
	ctx := r.nodeCtx(input.NodeId, false)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()
	return gofuse.OK
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory. Many lookup calls can
// occur in parallel, but only one call happens for each (dir,
// name) pair.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *gofuse.InHeader, name string, out *gofuse.EntryOut) gofuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	ctx := r.nodeCtx(header.NodeId, false)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	dir, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	child, ok := dir.ChildNamed(name)
	if !ok {
		return gofuse.ENOENT
	}
	r.setEntry(child, out)
	return gofuse.OK
}

// Forget is called when the kernel discards entries from its
// dentry cache. This happens on unmount, and when the kernel
// is short on memory. Since it is not guaranteed to occur at
// any moment, and since there is no return value, Forget
// should not do I/O, as there is no channel to report back
// I/O errors.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ForgetNodeID(nodeid, nlookup)
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *gofuse.GetAttrIn, out *gofuse.AttrOut) gofuse.Status {
	ctx := r.nodeCtx(input.NodeId, false)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	r.fillAttr(ctx.Node(), &out.Attr)
	out.SetTimeout(seconds(r.cfg.AttrTimeout))
	return gofuse.OK
}

// SetAttr applies truncate, chmod, chown and utimes requests
func (r *FuseRaw) SetAttr(cancel <-chan struct{}, input *gofuse.SetAttrIn, out *gofuse.AttrOut) gofuse.Status {
	logger := util.GetLogger("Fuse.SetAttr")
	ctx := r.nodeCtx(input.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()
	node := ctx.Node()

	if size, ok := input.GetSize(); ok {
		f, isFile := ctx.File()
		if !isFile {
			return gofuse.EISDIR
		}
		if size > math.MaxInt64 {
			return gofuse.Status(syscall.EFBIG)
		}
		if err := r.tree.Truncate(f, int64(size)); err != nil {
			logger.Debug().Err(err).Str("path", f.Path()).Msg("Truncate failed")
			return toStatus(err)
		}
	}
	if mode, ok := input.GetMode(); ok {
		node.SetPerm(mode)
	}
	uid, gid := node.Owner()
	if v, ok := input.GetUID(); ok {
		uid = v
	}
	if v, ok := input.GetGID(); ok {
		gid = v
	}
	node.SetOwner(uid, gid)
	if t, ok := input.GetATime(); ok {
		node.SetAccessTime(t)
	}
	if t, ok := input.GetMTime(); ok {
		node.SetModTime(t)
	}

	r.fillAttr(node, &out.Attr)
	out.SetTimeout(seconds(r.cfg.AttrTimeout))
	return gofuse.OK
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *gofuse.MkdirIn, name string, out *gofuse.EntryOut) gofuse.Status {
	logger := util.GetLogger("Fuse.Mkdir")
	ctx := r.nodeCtx(input.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	parent, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	dir, err := r.tree.Mkdir(parent, name)
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Msg("Mkdir failed")
		return toStatus(err)
	}
	dir.SetPerm(input.Mode)
	dir.SetOwner(input.Uid, input.Gid)
	r.setEntry(dir, out)
	return gofuse.OK
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *gofuse.InHeader, name string) gofuse.Status {
	ctx := r.nodeCtx(header.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	parent, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	_, err := r.tree.Unlink(parent, name)
	return toStatus(err)
}

func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *gofuse.InHeader, name string) gofuse.Status {
	ctx := r.nodeCtx(header.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	parent, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	_, err := r.tree.Rmdir(parent, name)
	return toStatus(err)
}

func (r *FuseRaw) Rename(cancel <-chan struct{}, input *gofuse.RenameIn, oldName string, newName string) gofuse.Status {
	logger := util.GetLogger("Fuse.Rename")
	if input.Flags&renameExchange != 0 {
		return gofuse.ENOSYS
	}
	ctx := r.nodeCtx(input.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	oldParent, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	newNode, ok := r.nodeByID(input.Newdir)
	if !ok {
		return gofuse.ENOENT
	}
	newParent, ok := newNode.(*filesystem.Directory)
	if !ok {
		return gofuse.ENOTDIR
	}
	src, ok := oldParent.ChildNamed(oldName)
	if !ok {
		return gofuse.ENOENT
	}
	if input.Flags&renameNoReplace != 0 {
		if _, exists := newParent.ChildNamed(newName); exists {
			return gofuse.Status(syscall.EEXIST)
		}
	}
	if _, err := r.tree.MoveNode(src, newParent, newName); err != nil {
		logger.Debug().Err(err).Str("from", oldName).Str("to", newName).Msg("Rename failed")
		return toStatus(err)
	}
	return gofuse.OK
}

func (r *FuseRaw) Create(cancel <-chan struct{}, input *gofuse.CreateIn, name string, out *gofuse.CreateOut) gofuse.Status {
	logger := util.GetLogger("Fuse.Create")
	ctx := r.nodeCtx(input.NodeId, true)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	parent, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	f, err := r.tree.MakeFile(parent, name, nil)
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Msg("Create failed")
		return toStatus(err)
	}
	f.SetPerm(input.Mode)
	f.SetOwner(input.Uid, input.Gid)
	r.setEntry(f, &out.EntryOut)
	r.openHandle(f, input.Flags, &out.OpenOut)
	return gofuse.OK
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *gofuse.OpenIn, out *gofuse.OpenOut) gofuse.Status {
	trunc := input.Flags&syscall.O_TRUNC != 0
	ctx := r.nodeCtx(input.NodeId, trunc)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	f, ok := ctx.File()
	if !ok {
		return gofuse.EISDIR
	}
	if trunc && input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		if err := r.tree.Truncate(f, 0); err != nil {
			return gofuse.EIO
		}
	}
	r.openHandle(f, input.Flags, out)
	return gofuse.OK
}

func (r *FuseRaw) openHandle(f *filesystem.File, flags uint32, out *gofuse.OpenOut) {
	fh := r.lastFh.Add(1)
	r.fhs.Store(fh, &handle{node: f, flags: flags})
	out.Fh = fh
	if r.cfg.DirectIO {
		out.OpenFlags |= gofuse.FOPEN_DIRECT_IO
	}
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *gofuse.ReadIn, buf []byte) (gofuse.ReadResult, gofuse.Status) {
	h, ok := r.fhs.Load(input.Fh)
	if !ok {
		return nil, gofuse.EBADF
	}
	f, ok := h.node.(*filesystem.File)
	if !ok {
		return nil, gofuse.EISDIR
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := f.ReadAt(buf, int64(input.Offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, gofuse.EIO
	}
	return gofuse.ReadResultData(buf[:n]), gofuse.OK
}

func (r *FuseRaw) Write(cancel <-chan struct{}, input *gofuse.WriteIn, data []byte) (uint32, gofuse.Status) {
	h, ok := r.fhs.Load(input.Fh)
	if !ok {
		return 0, gofuse.EBADF
	}
	f, ok := h.node.(*filesystem.File)
	if !ok {
		return 0, gofuse.EISDIR
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if input.Offset > math.MaxInt64 {
		return 0, gofuse.Status(syscall.EFBIG)
	}
	off := int64(input.Offset)
	if h.flags&syscall.O_APPEND != 0 {
		off = f.Size()
	}
	n, err := r.tree.WriteAt(f, data, off)
	if err != nil {
		return uint32(n), toStatus(err)
	}
	return uint32(n), gofuse.OK
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *gofuse.ReleaseIn) {
	r.fhs.Delete(input.Fh)
}

// OpenDir snapshots the directory's children into a cursor owned by the handle
func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *gofuse.OpenIn, out *gofuse.OpenOut) gofuse.Status {
	ctx := r.nodeCtx(input.NodeId, false)
	if ctx == nil {
		return gofuse.ENOENT
	}
	defer ctx.Close()

	dir, ok := ctx.Dir()
	if !ok {
		return gofuse.ENOTDIR
	}
	fh := r.lastFh.Add(1)
	r.fhs.Store(fh, &handle{node: dir, flags: input.Flags, cursor: dir.Cursor()})
	out.Fh = fh
	return gofuse.OK
}

// ReadDir lists "." and ".." followed by the children in insertion order.
// Offset k addresses entry k; offset 0 rewinds the cursor so a rewinddir
// sees the live children.
func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *gofuse.ReadIn, out *gofuse.DirEntryList) gofuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Trace().Uint64("fh", input.Fh).Uint64("offset", input.Offset).Msg("ReadDir called")

	h, ok := r.fhs.Load(input.Fh)
	if !ok || h.cursor == nil {
		return gofuse.EBADF
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if input.Offset == 0 {
		h.cursor.Rewind()
	}
	r.dirEntries(h, input.Offset, out.AddDirEntry)
	return gofuse.OK
}

// dirEntries feeds entries starting at offset to add until it reports a
// full buffer
func (r *FuseRaw) dirEntries(h *handle, offset uint64, add func(gofuse.DirEntry) bool) {
	dir := h.node
	idx := offset
	if idx == 0 {
		if !add(gofuse.DirEntry{Name: ".", Mode: gofuse.S_IFDIR, Ino: r.inode(dir), Off: 1}) {
			return
		}
		idx++
	}
	if idx == 1 {
		up := dir
		if p := dir.Parent(); p != nil && dir != filesystem.Node(r.tree.Root()) {
			up = p
		}
		if !add(gofuse.DirEntry{Name: "..", Mode: gofuse.S_IFDIR, Ino: r.inode(up), Off: 2}) {
			return
		}
		idx++
	}

	c := h.cursor
	c.Seek(int(idx - 2))
	for ; c.Valid(); c.Next() {
		n := c.Current()
		entry := gofuse.DirEntry{
			Name: c.Key(),
			Mode: typeBits(n),
			Ino:  r.inode(n),
			Off:  uint64(c.Pos()) + 3,
		}
		if !add(entry) {
			return
		}
	}
}

func (r *FuseRaw) ReleaseDir(input *gofuse.ReleaseIn) {
	r.fhs.Delete(input.Fh)
}

// StatFs reports the tree's usage. Capacity is bounded only by memory so the
// free counts are nominal.
func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *gofuse.InHeader, out *gofuse.StatfsOut) gofuse.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files, size uint64
	if root := r.tree.Root(); root != nil {
		_ = filesystem.Walk(root, func(n filesystem.Node, _ int) error {
			files++
			if n.Type() == filesystem.FileType {
				size += uint64(n.Size())
			}
			return nil
		})
	}
	used := (size + blockSize - 1) / blockSize
	*out = gofuse.StatfsOut{
		Blocks:  used + freeInodes,
		Bfree:   freeInodes,
		Bavail:  freeInodes,
		Files:   files,
		Ffree:   freeInodes,
		Bsize:   blockSize,
		NameLen: 255,
		Frsize:  blockSize,
	}
	return gofuse.OK
}
