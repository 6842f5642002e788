package fuse

import (
	"github.com/brettbedarf/memvfs/filesystem"
)

// NodeContext wraps a [filesystem.Node] resolved from a kernel NodeID while the
// bridge's tree lock is held (read or write, depending on the operation).
// Calling NodeContext.Close() unwinds all unlocking/cleanup callbacks in reverse order.
//
// NOTE: NodeContext itself is **not** thread-safe meaning references
// to it should not be shared between goroutines
type NodeContext struct {
	node     filesystem.Node
	closeFns []func()
}

// nodeCtx locks the tree and resolves nodeID. The lock is released again when
// the node is unknown, in which case nil is returned.
func (r *FuseRaw) nodeCtx(nodeID uint64, write bool) *NodeContext {
	ctx := &NodeContext{}
	if write {
		r.mu.Lock()
		ctx.AddClose(r.mu.Unlock)
	} else {
		r.mu.RLock()
		ctx.AddClose(r.mu.RUnlock)
	}
	node, ok := r.nodeByID(nodeID)
	if !ok {
		ctx.Close()
		return nil
	}
	ctx.node = node
	return ctx
}

func (ctx *NodeContext) Node() filesystem.Node {
	return ctx.node
}

// Dir returns the node as a directory when it is one
func (ctx *NodeContext) Dir() (*filesystem.Directory, bool) {
	d, ok := ctx.node.(*filesystem.Directory)
	return d, ok
}

// File returns the node as a file when it is one
func (ctx *NodeContext) File() (*filesystem.File, bool) {
	f, ok := ctx.node.(*filesystem.File)
	return f, ok
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (ctx *NodeContext) AddClose(fn func()) {
	ctx.closeFns = append(ctx.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if ctx is nil or no locks were acquired; it is
// a no-op in those cases, so you can `defer ctx.Close()` unconditionally.
//
// Example:
//
//	ctx := r.nodeCtx(header.NodeId, false)
//	defer ctx.Close()
func (ctx *NodeContext) Close() {
	if ctx == nil {
		return
	}
	for i := len(ctx.closeFns) - 1; i >= 0; i-- {
		ctx.closeFns[i]()
	}
	ctx.closeFns = nil
}
