package btree

import "fmt"

// Remove deletes the entry for key, returning the address it was associated
// with, or NoAddress if key wasn't present.
func (t *Tree) Remove(key int32) (int64, error) {
	if t.closed {
		return NoAddress, ErrClosed
	}

	path, err := t.searchPath(key)
	if err != nil {
		return NoAddress, err
	}
	if len(path) == 0 {
		return NoAddress, nil
	}

	leaf := path[len(path)-1]
	path = path[:len(path)-1]

	if !leaf.hasKey(key) {
		return NoAddress, nil
	}

	removedAddr := leaf.removeKey(key)
	if err := t.writeNode(leaf); err != nil {
		return NoAddress, err
	}

	// Removing a leaf's first key leaves the ancestor separator equal to it
	// stale; replace it with the leaf's new first key.
	if leaf.numKeys() > 0 && leaf.keys[0] > key {
		for _, anc := range path {
			for j := int32(0); j < anc.numKeys(); j++ {
				if anc.keys[j] == key {
					anc.keys[j] = leaf.keys[0]
					if err := t.writeNode(anc); err != nil {
						return NoAddress, err
					}
				}
			}
		}
	}

	if leaf.address == t.root && leaf.count == 0 {
		if err := t.release(leaf.address); err != nil {
			return NoAddress, err
		}
		return removedAddr, t.setRoot(NoAddress)
	}

	tooSmall := leaf.address != t.root && leaf.numKeys() < minKeys(t.order)

	child := leaf
	for len(path) > 0 && tooSmall {
		branch := path[len(path)-1]
		path = path[:len(path)-1]

		i := int32(0)
		for ; i <= branch.numKeys(); i++ {
			if branch.children[i] == child.address {
				break
			}
		}

		// Check both neighbors; if both are eligible donors, the right
		// sibling wins (matches the reference implementation, which
		// checks left then unconditionally re-checks right).
		var donor *node
		var donorIsLeft bool
		if i > 0 {
			left, err := t.readNode(branch.children[i-1])
			if err != nil {
				return NoAddress, err
			}
			if left.numKeys() > minKeys(t.order) {
				donor, donorIsLeft = left, true
			}
		}
		if i < branch.numKeys() {
			right, err := t.readNode(branch.children[i+1])
			if err != nil {
				return NoAddress, err
			}
			if right.numKeys() > minKeys(t.order) {
				donor, donorIsLeft = right, false
			}
		}

		if donor != nil {
			if donorIsLeft {
				if err := t.borrowFromLeft(child, donor, branch); err != nil {
					return NoAddress, err
				}
			} else {
				if err := t.borrowFromRight(child, donor, branch); err != nil {
					return NoAddress, err
				}
			}
			tooSmall = false
		} else {
			if i > 0 {
				left, err := t.readNode(branch.children[i-1])
				if err != nil {
					return NoAddress, err
				}
				if err := t.mergeIntoLeft(child, left, branch); err != nil {
					return NoAddress, err
				}
			} else if i < branch.numKeys() {
				right, err := t.readNode(branch.children[i+1])
				if err != nil {
					return NoAddress, err
				}
				if err := t.mergeIntoLeft(right, child, branch); err != nil {
					return NoAddress, err
				}
			}

			if branch.numKeys() >= minKeys(t.order) || (branch.address == t.root && branch.numKeys() >= 1) {
				tooSmall = false
			}
		}

		child = branch
	}

	if tooSmall {
		// Propagation reached and emptied the root branch: replace it
		// with its sole remaining child. tooSmall is only ever set true
		// for a branch (the root leaf case above returns early, and a
		// root leaf is never flagged too-small), but a leaf root
		// collapsing here would misread a row address as a child pointer
		// and free the tree's only data leaf, so guard against it.
		oldRoot, err := t.readNode(t.root)
		if err != nil {
			return NoAddress, err
		}
		if oldRoot.isLeaf() {
			return NoAddress, fmt.Errorf("btree: refusing to collapse a leaf root at %d", oldRoot.address)
		}
		if err := t.setRoot(oldRoot.children[0]); err != nil {
			return NoAddress, err
		}
		if err := t.release(oldRoot.address); err != nil {
			return NoAddress, err
		}
	}

	return removedAddr, nil
}

// borrowFromRight moves the first entry of donor (the right sibling) into
// receiver, updating the separator between them in parent.
func (t *Tree) borrowFromRight(receiver, donor, parent *node) error {
	if receiver.isLeaf() {
		firstKey := donor.keys[0]
		firstChild := donor.children[0]
		c := donor.numKeys()
		for i := int32(0); i < c-1; i++ {
			donor.keys[i] = donor.keys[i+1]
			donor.children[i] = donor.children[i+1]
		}
		donor.count = -(c - 1)

		receiver.insertKeyAddr(firstKey, firstChild)

		for i := int32(1); i <= parent.numKeys(); i++ {
			if parent.children[i] == donor.address {
				parent.keys[i-1] = donor.keys[0]
				break
			}
		}
	} else {
		firstKey := donor.keys[0]
		firstChild := donor.children[0]
		donor.count--
		c := donor.numKeys()
		for i := int32(0); i < c; i++ {
			donor.keys[i] = donor.keys[i+1]
			donor.children[i] = donor.children[i+1]
		}
		donor.children[c] = donor.children[c+1]

		sep, _ := parent.getKeyForChild(donor.address)
		receiver.keys[receiver.numKeys()] = sep
		receiver.children[receiver.numKeys()+1] = firstChild
		receiver.count++

		for i := int32(1); i <= parent.numKeys(); i++ {
			if parent.children[i] == donor.address {
				parent.keys[i-1] = firstKey
				break
			}
		}
	}

	if err := t.writeNode(donor); err != nil {
		return err
	}
	if err := t.writeNode(receiver); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// borrowFromLeft moves the last entry of donor (the left sibling) into
// receiver, updating the separator between them in parent.
func (t *Tree) borrowFromLeft(receiver, donor, parent *node) error {
	if receiver.isLeaf() {
		lastIdx := donor.numKeys() - 1
		lastKey := donor.keys[lastIdx]
		lastChild := donor.children[lastIdx]
		donor.count = -(lastIdx)

		receiver.insertKeyAddr(lastKey, lastChild)

		for i := int32(1); i <= parent.numKeys(); i++ {
			if parent.children[i] == receiver.address {
				parent.keys[i-1] = lastKey
				break
			}
		}
	} else {
		lastIdx := donor.numKeys() - 1
		lastKey := donor.keys[lastIdx]
		lastChild := donor.children[donor.numKeys()]
		donor.count--

		c := receiver.numKeys()
		for i := c - 1; i >= 0; i-- {
			receiver.keys[i+1] = receiver.keys[i]
		}
		for i := c; i >= 0; i-- {
			receiver.children[i+1] = receiver.children[i]
		}

		sep, _ := parent.getKeyForChild(receiver.address)
		receiver.keys[0] = sep
		receiver.children[0] = lastChild
		receiver.count++

		for i := int32(1); i <= parent.numKeys(); i++ {
			if parent.children[i] == receiver.address {
				parent.keys[i-1] = lastKey
				break
			}
		}
	}

	if err := t.writeNode(donor); err != nil {
		return err
	}
	if err := t.writeNode(receiver); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// mergeIntoLeft folds source (the right sibling) into dest (the left
// sibling), drops the parent's separator between them, and frees source's
// block.
func (t *Tree) mergeIntoLeft(source, dest, parent *node) error {
	if source.isLeaf() {
		dest.setSibling(source.sibling())
		for i := int32(0); i < source.numKeys(); i++ {
			dest.insertKeyAddr(source.keys[i], source.children[i])
		}
	} else {
		sep, _ := parent.getKeyForChild(source.address)
		dest.insertKeyAddr(sep, source.children[0])
		for i := int32(1); i <= source.numKeys(); i++ {
			dest.insertKeyAddr(source.keys[i-1], source.children[i])
		}
	}

	parent.removeKeyLeftOf(source.address)

	if err := t.release(source.address); err != nil {
		return err
	}
	if err := t.writeNode(dest); err != nil {
		return err
	}
	return t.writeNode(parent)
}
