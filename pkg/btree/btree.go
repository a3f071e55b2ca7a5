// Package btree implements a disk-backed B+Tree: a block-oriented index with
// splits, borrows, and merges under fixed node-capacity invariants,
// sibling-linked leaves for range scans, and a free list that recycles node
// slots after deletions.
//
// Node identity is a node's byte offset in the backing file. The search path
// from root to leaf is built as an explicit stack during descent rather than
// stored as on-disk parent pointers, so that underflow repair on the way
// back up has the ancestor it needs without complicating the file format.
package btree

import (
	"errors"

	"bplustable/pkg/pager"
)

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("btree: use of closed tree")

// Tree is a disk-backed B+Tree index mapping int32 keys to int64 addresses.
type Tree struct {
	pager     *pager.Pager
	order     int
	blockSize int32
	root      int64
	free      int64
	closed    bool
}

// orderFromBlockSize derives the tree's order from a caller-supplied block
// size, per the node record's fixed shape: 4 bytes for count, order-1 32-bit
// keys, order 64-bit child/address slots.
func orderFromBlockSize(blockSize int) int {
	return blockSize / 12
}

// minKeys is the minimum number of keys a non-root node may hold.
func minKeys(order int) int32 {
	return int32((order+1)/2 - 1)
}

// Create deletes any existing file at path, opens a fresh one, and writes
// the header for a tree whose order is derived from blockSize.
func Create(path string, blockSize int) (*Tree, error) {
	p, err := pager.Create(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		pager:     p,
		order:     orderFromBlockSize(blockSize),
		blockSize: int32(blockSize),
		root:      NoAddress,
		free:      NoAddress,
	}
	if err := t.writeHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return t, nil
}

// Open reopens an existing tree file, reading its header.
func Open(path string) (*Tree, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{pager: p}
	if err := t.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tree) writeHeader() error {
	buf := make([]byte, headerSize)
	putInt64(buf[rootOffset:], t.root)
	putInt64(buf[freeHeadOffset:], t.free)
	putInt32(buf[blockSizeOffset:], t.blockSize)
	return t.pager.WriteAt(buf, 0)
}

func (t *Tree) readHeader() error {
	buf := make([]byte, headerSize)
	if err := t.pager.ReadAt(buf, 0); err != nil {
		return err
	}
	t.root = getInt64(buf[rootOffset:])
	t.free = getInt64(buf[freeHeadOffset:])
	t.blockSize = getInt32(buf[blockSizeOffset:])
	t.order = orderFromBlockSize(int(t.blockSize))
	return nil
}

func (t *Tree) setRoot(addr int64) error {
	t.root = addr
	buf := make([]byte, addrSize)
	putInt64(buf, addr)
	return t.pager.WriteAt(buf, rootOffset)
}

// Close releases the backing file handle. Further operations are errors.
func (t *Tree) Close() error {
	if t.closed {
		return ErrClosed
	}
	t.closed = true
	return t.pager.Close()
}

// GetFileName returns the path backing this tree.
func (t *Tree) GetFileName() string {
	return t.pager.GetFileName()
}

func (t *Tree) readNode(addr int64) (*node, error) {
	buf := make([]byte, nodeRecordSize(t.order))
	if err := t.pager.ReadAt(buf, addr); err != nil {
		return nil, err
	}
	return decodeNode(t.order, addr, buf), nil
}

func (t *Tree) writeNode(n *node) error {
	return t.pager.WriteAt(n.encode(), n.address)
}

// writeNewNode allocates a fresh block, assigns it to n, and persists n
// there, returning n's new address.
func (t *Tree) writeNewNode(n *node) (int64, error) {
	addr, err := t.allocate()
	if err != nil {
		return 0, err
	}
	n.address = addr
	if err := t.writeNode(n); err != nil {
		return 0, err
	}
	return addr, nil
}

// searchPath returns the stack of nodes visited descending from the root
// toward key, with the leaf that would contain key on top. An empty stack
// means the tree has no root yet.
func (t *Tree) searchPath(key int32) ([]*node, error) {
	var path []*node
	if t.root == NoAddress {
		return path, nil
	}
	cur, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}
	path = append(path, cur)
	for !cur.isLeaf() {
		cur, err = t.readNode(cur.children[cur.childIdx(key)])
		if err != nil {
			return nil, err
		}
		path = append(path, cur)
	}
	return path, nil
}
