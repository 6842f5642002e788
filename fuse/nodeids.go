package fuse

import (
	"sync/atomic"

	"github.com/brettbedarf/memvfs/filesystem"
	"github.com/google/uuid"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// nodeEntry is a node the kernel holds a NodeID for
type nodeEntry struct {
	id      uint64
	node    filesystem.Node
	lookups atomic.Int64 // kernel lookup count; the entry is dropped at zero
}

// nodeIDs maps kernel NodeIDs to tree nodes. IDs are assigned on demand for
// the session only; the active root is always FUSE_ROOT_ID.
type nodeIDs struct {
	lastNodeID atomic.Uint64
	byID       *xsync.Map[uint64, *nodeEntry]
	byNode     *xsync.Map[uuid.UUID, *nodeEntry]
}

func newNodeIDs() *nodeIDs {
	ids := &nodeIDs{
		byID:   xsync.NewMap[uint64, *nodeEntry](),
		byNode: xsync.NewMap[uuid.UUID, *nodeEntry](),
	}
	ids.lastNodeID.Store(gofuse.FUSE_ROOT_ID)
	return ids
}

// nodeByID returns the node for a kernel NodeID
func (r *FuseRaw) nodeByID(id uint64) (filesystem.Node, bool) {
	if id == gofuse.FUSE_ROOT_ID {
		root := r.tree.Root()
		if root == nil {
			return nil, false
		}
		return root, true
	}
	entry, ok := r.ids.byID.Load(id)
	if !ok {
		return nil, false
	}
	return entry.node, true
}

// EnsureNodeID retrieves or allocates the NodeID of n; safe with or without held locks.
func (r *FuseRaw) EnsureNodeID(n filesystem.Node) uint64 {
	return r.ensureEntry(n).id
}

func (r *FuseRaw) ensureEntry(n filesystem.Node) *nodeEntry {
	if root := r.tree.Root(); root != nil && n == filesystem.Node(root) {
		return &nodeEntry{id: gofuse.FUSE_ROOT_ID, node: n}
	}
	// fast path
	if entry, ok := r.ids.byNode.Load(n.ID()); ok && entry.node == n {
		return entry
	}
	// allocate a new one; only one store will succeed
	entry := &nodeEntry{id: r.ids.lastNodeID.Add(1), node: n}
	actual, loaded := r.ids.byNode.LoadOrStore(n.ID(), entry)
	if loaded && actual.node == n {
		// someone else won the race, use the real value
		return actual
	}
	if loaded {
		// a different node pinned the same UUID
		r.ids.byNode.Store(n.ID(), entry)
	}
	r.ids.byID.Store(entry.id, entry)
	return entry
}

// lookupNodeID is [FuseRaw.EnsureNodeID] for replies that count as a
// kernel lookup (Lookup, Mkdir, Create).
func (r *FuseRaw) lookupNodeID(n filesystem.Node) uint64 {
	entry := r.ensureEntry(n)
	entry.lookups.Add(1)
	return entry.id
}

// ForgetNodeID drops nlookup kernel references to id and removes the
// registry entry once none are left
func (r *FuseRaw) ForgetNodeID(id, nlookup uint64) {
	entry, ok := r.ids.byID.Load(id)
	if !ok {
		return
	}
	if entry.lookups.Add(-int64(nlookup)) > 0 {
		return
	}
	r.ids.byID.Delete(id)
	if cur, ok := r.ids.byNode.Load(entry.node.ID()); ok && cur == entry {
		r.ids.byNode.Delete(entry.node.ID())
	}
}

// knownNodes is the number of non-root NodeIDs currently handed out
func (r *FuseRaw) knownNodes() int {
	return r.ids.byID.Size()
}
