package filesystem

import "strings"

// Resolve translates an absolute path ("root/a/b", a single leading "/" is
// allowed) into the node it designates under root.
//
// Resolution never fails loudly: "not found" is reported through ok so it can
// back existence checks. No "." or ".." handling is done; callers pre-normalize.
func Resolve(root *Directory, path string) (node Node, ok bool) {
	if root == nil {
		return nil, false
	}
	path = strings.TrimPrefix(path, Separator)
	if !root.AppliesTo(path) {
		return nil, false
	}
	if path == root.name {
		return root, true
	}
	return root.lookup(path[len(root.name)+1:])
}

// lookup scans children in order. An exact name match wins immediately,
// otherwise a child the path applies to is searched recursively and the scan
// continues with the next sibling when that comes up empty.
func (d *Directory) lookup(rel string) (Node, bool) {
	for _, child := range d.children {
		if !child.AppliesTo(rel) {
			continue
		}
		if child.Name() == rel {
			return child, true
		}
		dir, ok := child.(*Directory)
		if !ok {
			continue
		}
		if found, ok := dir.lookup(rel[len(dir.name)+1:]); ok {
			return found, true
		}
	}
	return nil, false
}

// splitPath strips a single leading separator and splits on the separator.
// Empty segments are kept so that name validation can reject them.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, Separator)
	return strings.Split(path, Separator)
}
