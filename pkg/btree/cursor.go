package btree

import "bplustable/pkg/entry"

// Cursor iterates over every entry in the tree in ascending key order,
// following the leaf sibling chain. It generalizes the pattern the original
// row table used to print itself (range-searching [MinInt32, MaxInt32])
// into a real iterator that doesn't need artificial bounds.
type Cursor struct {
	tree  *Tree
	node  *node
	index int32
	done  bool
	err   error
}

// CursorAtStart returns a cursor positioned at the first entry in the tree,
// or a cursor that immediately reports done if the tree is empty.
func (t *Tree) CursorAtStart() (*Cursor, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.root == NoAddress {
		return &Cursor{tree: t, done: true}, nil
	}
	cur, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}
	for !cur.isLeaf() {
		cur, err = t.readNode(cur.children[0])
		if err != nil {
			return nil, err
		}
	}
	c := &Cursor{tree: t, node: cur, index: 0}
	if cur.numKeys() == 0 {
		c.done = true
	}
	return c, nil
}

// Entry returns the entry the cursor currently points to.
func (c *Cursor) Entry() (entry.Entry, bool) {
	if c.done {
		return entry.Entry{}, false
	}
	return entry.New(c.node.keys[c.index], c.node.children[c.index]), true
}

// Next advances the cursor to the next entry. Returns false if there was a
// next entry to advance to, true if the cursor has been exhausted - matching
// the sense of the reference cursor's Next (the loop keeps going while Next
// returns false). If Next returns true because a read off the sibling chain
// failed rather than because the chain ended, Err reports the failure -
// callers that need to distinguish the two must check it.
func (c *Cursor) Next() bool {
	if c.done {
		return true
	}
	c.index++
	if c.index < c.node.numKeys() {
		return false
	}
	sibling := c.node.sibling()
	if sibling == NoAddress {
		c.done = true
		return true
	}
	next, err := c.tree.readNode(sibling)
	if err != nil {
		c.done = true
		c.err = err
		return true
	}
	if next.numKeys() == 0 {
		c.done = true
		return true
	}
	c.node = next
	c.index = 0
	return false
}

// Err reports the first I/O error encountered while advancing the cursor,
// or nil if the cursor ran to completion (or hasn't failed yet).
func (c *Cursor) Err() error {
	return c.err
}
