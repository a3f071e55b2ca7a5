package btree

// allocate returns the address of a free block, either popped from the
// free list or carved out of the end of the file if the list is empty.
func (t *Tree) allocate() (int64, error) {
	if t.free == NoAddress {
		size, err := t.pager.Size()
		if err != nil {
			return 0, err
		}
		return size, nil
	}
	addr := t.free
	fwd, err := t.readForwardPointer(addr)
	if err != nil {
		return 0, err
	}
	if err := t.setFree(fwd); err != nil {
		return 0, err
	}
	return addr, nil
}

// release links the block at addr into the free list, making it the new
// head. The block's former contents are overwritten with a forward pointer
// to the previous head, so a released block must never again be read as a
// live node until it's reallocated.
func (t *Tree) release(addr int64) error {
	buf := make([]byte, addrSize)
	putInt64(buf, t.free)
	if err := t.pager.WriteAt(buf, addr); err != nil {
		return err
	}
	return t.setFree(addr)
}

func (t *Tree) readForwardPointer(addr int64) (int64, error) {
	buf := make([]byte, addrSize)
	if err := t.pager.ReadAt(buf, addr); err != nil {
		return 0, err
	}
	return getInt64(buf), nil
}

// setFree updates the in-memory and on-disk free-list head.
func (t *Tree) setFree(addr int64) error {
	t.free = addr
	buf := make([]byte, addrSize)
	putInt64(buf, addr)
	return t.pager.WriteAt(buf, freeHeadOffset)
}
