package filesystem

// Registry tracks the single active root of a tree.
//
// Register resets to "no root". SetRoot installs a root, replacing any
// previous one. The registry is not goroutine safe; hosts serialize access.
type Registry struct {
	root *Directory
}

// Default is the process wide registry used by the package level helpers
// and by a [Tree] built without [WithRegistry].
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{}
}

// Register clears the active root. It is the entry point for a fresh mount.
func (r *Registry) Register() {
	r.root = nil
}

// SetRoot installs dir as the active root. A dir still owned by another
// directory is detached first so the root never has a parent.
func (r *Registry) SetRoot(dir *Directory) {
	if dir != nil {
		if p := dir.Parent(); p != nil {
			p.removeNode(dir)
		}
	}
	r.root = dir
}

// Root returns the active root, nil when there is none
func (r *Registry) Root() *Directory {
	return r.root
}

// RemoveRoot clears the root when its name equals name
func (r *Registry) RemoveRoot(name string) bool {
	if r.root == nil || r.root.Name() != name {
		return false
	}
	r.root = nil
	return true
}

// Resolve looks path up under the active root
func (r *Registry) Resolve(path string) (Node, bool) {
	return Resolve(r.root, path)
}

// Register resets [Default]
func Register() { Default.Register() }

// SetRoot installs dir as the root of [Default]
func SetRoot(dir *Directory) { Default.SetRoot(dir) }

// Root returns the root of [Default]
func Root() *Directory { return Default.Root() }
