package filesystem

import (
	"errors"
	"io/fs"
)

// SkipDir can be returned by a [WalkFunc] to skip the children of a directory
var SkipDir = fs.SkipDir

// WalkFunc is called for every visited node with its depth below the start
type WalkFunc func(n Node, depth int) error

// Walk visits start and then its descendants depth first, each directory's
// children in insertion order.
func Walk(start Node, fn WalkFunc) error {
	err := walk(start, 0, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(n Node, depth int, fn WalkFunc) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	dir, ok := n.(*Directory)
	if !ok {
		return nil
	}
	for c := dir.Cursor(); c.Valid(); c.Next() {
		err := walk(c.Current(), depth+1, fn)
		if err == nil {
			continue
		}
		if errors.Is(err, SkipDir) && c.Current().Type() == DirType {
			continue
		}
		return err
	}
	return nil
}
