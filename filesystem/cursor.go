package filesystem

// Cursor walks the children of a [Directory] in insertion order, yielding
// (name, node) pairs.
//
// It works on a snapshot of the child list taken at construction and again on
// every [Cursor.Rewind]; mutations of the directory in between are not seen.
type Cursor struct {
	dir      *Directory
	children []Node
	pos      int
}

// NewCursor snapshots dir's children and positions on the first one
func NewCursor(dir *Directory) *Cursor {
	c := &Cursor{dir: dir}
	c.Rewind()
	return c
}

// Rewind re-snapshots the live children and resets to the first one
func (c *Cursor) Rewind() {
	c.children = c.dir.Children()
	c.pos = 0
}

// Current returns the node at the position, nil once exhausted
func (c *Cursor) Current() Node {
	if !c.Valid() {
		return nil
	}
	return c.children[c.pos]
}

// Key returns the name of the current node, "" once exhausted
func (c *Cursor) Key() string {
	if !c.Valid() {
		return ""
	}
	return c.children[c.pos].Name()
}

// Next advances one position. Advancing past the end is harmless.
func (c *Cursor) Next() {
	if c.pos < len(c.children) {
		c.pos++
	}
}

func (c *Cursor) Valid() bool {
	return c.pos < len(c.children)
}

// Seek jumps to an absolute position, clamped to [0, Len()]
func (c *Cursor) Seek(pos int) {
	c.pos = min(max(pos, 0), len(c.children))
}

func (c *Cursor) Pos() int { return c.pos }

// Len is the size of the snapshot
func (c *Cursor) Len() int { return len(c.children) }
