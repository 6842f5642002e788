package fuse

import (
	"encoding/binary"
	"errors"
	"syscall"
	"time"

	"github.com/brettbedarf/memvfs/filesystem"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
)

const blockSize = 4096

// inode derives a stable inode number from the node's identity. The root is
// always FUSE_ROOT_ID.
func (r *FuseRaw) inode(n filesystem.Node) uint64 {
	if root := r.tree.Root(); root != nil && n == filesystem.Node(root) {
		return gofuse.FUSE_ROOT_ID
	}
	id := n.ID()
	ino := binary.BigEndian.Uint64(id[:8])
	if ino <= gofuse.FUSE_ROOT_ID {
		ino += 2
	}
	return ino
}

// typeBits returns the S_IFMT bits of the node
func typeBits(n filesystem.Node) uint32 {
	if n.Type() == filesystem.DirType {
		return gofuse.S_IFDIR
	}
	return gofuse.S_IFREG
}

// fillAttr writes a snapshot of n's metadata into out
func (r *FuseRaw) fillAttr(n filesystem.Node, out *gofuse.Attr) {
	st := n.Stat()
	*out = gofuse.Attr{
		Ino:     r.inode(n),
		Size:    uint64(st.Size),
		Blocks:  (uint64(st.Size) + 511) / 512,
		Mode:    typeBits(n) | st.Perm,
		Nlink:   1,
		Owner:   gofuse.Owner{Uid: st.UID, Gid: st.GID},
		Blksize: blockSize,
	}
	if st.IsDir() {
		out.Nlink = 2
	}
	out.SetTimes(&st.AccessTime, &st.ModTime, &st.CreateTime)
}

// setEntry fills an entry reply for n, counting it as a kernel lookup
func (r *FuseRaw) setEntry(n filesystem.Node, out *gofuse.EntryOut) {
	out.NodeId = r.lookupNodeID(n)
	r.fillAttr(n, &out.Attr)
	out.SetEntryTimeout(seconds(r.cfg.EntryTimeout))
	out.SetAttrTimeout(seconds(r.cfg.AttrTimeout))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// toStatus maps tree errors onto errno statuses
func toStatus(err error) gofuse.Status {
	switch {
	case err == nil:
		return gofuse.OK
	case errors.Is(err, filesystem.ErrTooLarge):
		return gofuse.Status(syscall.EFBIG)
	case errors.Is(err, filesystem.ErrInvalidName), errors.Is(err, filesystem.ErrCycle):
		return gofuse.EINVAL
	case errors.Is(err, filesystem.ErrNotExist):
		return gofuse.ENOENT
	case errors.Is(err, filesystem.ErrExist):
		return gofuse.Status(syscall.EEXIST)
	case errors.Is(err, filesystem.ErrNotDir):
		return gofuse.ENOTDIR
	case errors.Is(err, filesystem.ErrIsDir):
		return gofuse.EISDIR
	case errors.Is(err, filesystem.ErrNotEmpty):
		return gofuse.Status(syscall.ENOTEMPTY)
	default:
		return gofuse.EIO
	}
}
