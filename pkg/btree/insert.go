package btree

// Insert adds a key-address entry into the tree. Returns true if the entry
// was added, false if key was already present (in which case no change is
// made).
func (t *Tree) Insert(key int32, addr int64) (bool, error) {
	if t.closed {
		return false, ErrClosed
	}

	if t.root == NoAddress {
		leaf := newNode(t.order, true)
		leaf.count = -1
		leaf.keys[0] = key
		leaf.children[0] = addr
		leaf.setSibling(NoAddress)
		rootAddr, err := t.writeNewNode(leaf)
		if err != nil {
			return false, err
		}
		return true, t.setRoot(rootAddr)
	}

	path, err := t.searchPath(key)
	if err != nil {
		return false, err
	}
	leaf := path[len(path)-1]
	path = path[:len(path)-1]

	if leaf.hasKey(key) {
		return false, nil
	}

	var promotedKey int32
	var promotedAddr int64
	split := false

	if leaf.numKeys() < int32(t.order-1) {
		leaf.insertKeyAddr(key, addr)
		if err := t.writeNode(leaf); err != nil {
			return false, err
		}
	} else {
		oldSibling := leaf.sibling()
		leaf.insertKeyAddr(key, addr)
		right := leaf.splitLeaf()
		right.setSibling(oldSibling)
		promotedKey = right.keys[0]
		rightAddr, err := t.writeNewNode(right)
		if err != nil {
			return false, err
		}
		leaf.setSibling(rightAddr)
		if err := t.writeNode(leaf); err != nil {
			return false, err
		}
		promotedAddr = rightAddr
		split = true
	}

	for len(path) > 0 && split {
		branch := path[len(path)-1]
		path = path[:len(path)-1]

		if branch.numKeys() < int32(t.order-1) {
			branch.insertKeyAddr(promotedKey, promotedAddr)
			if err := t.writeNode(branch); err != nil {
				return false, err
			}
			split = false
		} else {
			branch.insertKeyAddr(promotedKey, promotedAddr)
			right, mid := branch.splitBranch()
			if err := t.writeNode(branch); err != nil {
				return false, err
			}
			rightAddr, err := t.writeNewNode(right)
			if err != nil {
				return false, err
			}
			promotedKey = mid
			promotedAddr = rightAddr
		}
	}

	if split {
		newRoot := newNode(t.order, false)
		newRoot.children[0] = t.root
		newRoot.keys[0] = promotedKey
		newRoot.children[1] = promotedAddr
		newRoot.count = 1
		rootAddr, err := t.writeNewNode(newRoot)
		if err != nil {
			return false, err
		}
		return true, t.setRoot(rootAddr)
	}

	return true, nil
}
