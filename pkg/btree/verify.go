package btree

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// CheckInvariants walks the whole tree and the whole free list and reports
// the first violation of the invariants listed in spec §3/§8: occupancy
// bounds, strictly ascending and globally unique keys, correct
// separator-to-subtree relations, an intact leftmost-to-rightmost sibling
// chain, and a live/free block partition. Intended for use from tests, not
// from the hot path.
func (t *Tree) CheckInvariants() error {
	if t.closed {
		return ErrClosed
	}
	fileSize, err := t.pager.Size()
	if err != nil {
		return err
	}
	seen := bitset.New(uint(fileSize))

	if err := t.markFree(seen); err != nil {
		return err
	}

	if t.root == NoAddress {
		return nil
	}
	if _, _, _, err := t.checkSubtree(t.root, true, seen); err != nil {
		return err
	}
	return t.checkSiblingChain()
}

// markFree walks the free list, recording each block's address in seen and
// failing if a block appears in the free list more than once (which would
// mean the chain has a cycle or the partition invariant is already broken).
func (t *Tree) markFree(seen *bitset.BitSet) error {
	addr := t.free
	for addr != NoAddress {
		bit := uint(addr)
		if seen.Test(bit) {
			return fmt.Errorf("btree: free list revisits block %d", addr)
		}
		seen.Set(bit)
		fwd, err := t.readForwardPointer(addr)
		if err != nil {
			return err
		}
		addr = fwd
	}
	return nil
}

// checkSubtree recursively verifies the subtree rooted at addr, returning
// its minimum key, maximum key, and whether it's a leaf.
func (t *Tree) checkSubtree(addr int64, isRoot bool, seen *bitset.BitSet) (min, max int32, leaf bool, err error) {
	bit := uint(addr)
	if seen.Test(bit) {
		return 0, 0, false, fmt.Errorf("btree: block %d is both live and free", addr)
	}
	seen.Set(bit)

	n, err := t.readNode(addr)
	if err != nil {
		return 0, 0, false, err
	}

	if !isRoot && n.numKeys() < minKeys(t.order) {
		return 0, 0, false, fmt.Errorf("btree: node %d underflows (%d keys, minimum %d)", addr, n.numKeys(), minKeys(t.order))
	}
	if n.numKeys() > int32(t.order-1) {
		return 0, 0, false, fmt.Errorf("btree: node %d overflows (%d keys, maximum %d)", addr, n.numKeys(), t.order-1)
	}
	for i := int32(1); i < n.numKeys(); i++ {
		if n.keys[i-1] >= n.keys[i] {
			return 0, 0, false, fmt.Errorf("btree: node %d keys not strictly ascending at index %d", addr, i)
		}
	}

	if n.isLeaf() {
		if n.numKeys() == 0 {
			return 0, 0, true, nil
		}
		return n.keys[0], n.keys[n.numKeys()-1], true, nil
	}

	for i := int32(0); i <= n.numKeys(); i++ {
		childMin, childMax, _, err := t.checkSubtree(n.children[i], false, seen)
		if err != nil {
			return 0, 0, false, err
		}
		if i > 0 && childMin != n.keys[i-1] {
			return 0, 0, false, fmt.Errorf("btree: separator %d at node %d does not equal child %d's minimum key %d", n.keys[i-1], addr, i, childMin)
		}
		if i == 0 {
			min = childMin
		}
		if i == n.numKeys() {
			max = childMax
		}
	}
	return min, max, false, nil
}

// checkSiblingChain walks the leaf level left-to-right and confirms it
// visits keys in strictly ascending order, terminating at NoAddress.
func (t *Tree) checkSiblingChain() error {
	c, err := t.CursorAtStart()
	if err != nil {
		return err
	}
	var prev int32
	first := true
	for {
		e, ok := c.Entry()
		if !ok {
			return c.Err()
		}
		if !first && e.Key <= prev {
			return fmt.Errorf("btree: sibling chain not strictly ascending at key %d", e.Key)
		}
		prev = e.Key
		first = false
		if c.Next() {
			return c.Err()
		}
	}
}
