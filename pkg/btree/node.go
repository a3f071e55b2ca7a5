package btree

import "encoding/binary"

// A node is the on-disk shape shared by leaves and branches: a signed
// occupancy count, up to order-1 keys, and up to order child/address slots.
// A negative count marks a leaf ("-k" means k entries); a positive count
// marks a branch (k separator keys, k+1 children). The variant is therefore
// carried entirely in the sign of count rather than as a tagged union - an
// implementation convenience, not part of the file format's contract.
//
// keys and children are over-allocated by one slot beyond what's ever
// persisted (order keys instead of order-1, order+1 children instead of
// order) so that a node can transiently hold one more entry than its
// capacity between the moment an overfull insert lands and the moment the
// node is split - mirroring the reference implementation's node arrays.
type node struct {
	order    int
	count    int32
	keys     []int32
	children []int64
	address  int64
}

// newNode allocates an empty node of the given order. Its count is 0 for
// either value of leaf, so isLeaf reports false until the caller sets count.
func newNode(order int, leaf bool) *node {
	n := &node{
		order:    order,
		keys:     make([]int32, order),
		children: make([]int64, order+1),
	}
	if leaf {
		n.count = 0
	}
	return n
}

// isLeaf reports whether this node is a leaf (negative count).
func (n *node) isLeaf() bool {
	return n.count < 0
}

// numKeys returns the number of keys in this node, irrespective of variant.
func (n *node) numKeys() int32 {
	if n.count < 0 {
		return -n.count
	}
	return n.count
}

// sibling returns the address of the next leaf in ascending key order.
// Only meaningful for leaves; stored in the final child slot.
func (n *node) sibling() int64 {
	return n.children[n.order-1]
}

// setSibling sets this leaf's forward pointer to the next leaf.
func (n *node) setSibling(to int64) {
	n.children[n.order-1] = to
}

// hasKey reports whether key is present among this node's keys.
func (n *node) hasKey(key int32) bool {
	c := n.numKeys()
	for i := int32(0); i < c; i++ {
		if n.keys[i] == key {
			return true
		}
	}
	return false
}

// childIdx returns the smallest index i such that key < keys[i], or
// numKeys() if key is at least as large as every separator. Equivalently,
// advance the index while key >= keys[i]. This is the branch-routing rule:
// the child at the returned index owns the subtree for key.
func (n *node) childIdx(key int32) int32 {
	c := n.numKeys()
	i := int32(0)
	for i < c && key >= n.keys[i] {
		i++
	}
	return i
}

// insertKeyAddr inserts a (key, addr) pair into sorted position, shifting
// later entries right. For leaves, addr is a row address stored alongside
// the key at the same index. For branches, addr is a child pointer stored
// one slot to the right of the key it separates.
func (n *node) insertKeyAddr(key int32, addr int64) {
	branchOffset := int32(0)
	if !n.isLeaf() {
		branchOffset = 1
	}
	c := n.numKeys()
	i := int32(0)
	for i < c && key >= n.keys[i] {
		i++
	}
	for j := c - 1; j >= i; j-- {
		n.keys[j+1] = n.keys[j]
		n.children[j+1+branchOffset] = n.children[j+branchOffset]
	}
	n.keys[i] = key
	n.children[i+branchOffset] = addr
	if n.isLeaf() {
		n.count = -(c + 1)
	} else {
		n.count = c + 1
	}
}

// splitLeaf splits an overfull leaf in place, keeping the first floor(order/2)
// entries on the receiver and returning a fresh node holding the remaining
// ceil(order/2). The caller is responsible for wiring up sibling pointers,
// allocating an address for the returned node, and persisting both.
func (n *node) splitLeaf() *node {
	al := n.order / 2
	bl := n.order - al

	right := newNode(n.order, true)
	for i := 0; i < bl; i++ {
		right.keys[i] = n.keys[al+i]
		right.children[i] = n.children[al+i]
	}
	right.count = -int32(bl)
	n.count = -int32(al)
	return right
}

// splitBranch splits an overfull branch in place, keeping the first
// floor(order/2) keys (and one more child than that) on the receiver. The
// middle key is extracted - not duplicated - and returned alongside the new
// right-hand node for the caller to promote into the parent.
func (n *node) splitBranch() (right *node, promoted int32) {
	l := n.order / 2
	bl := n.order - l - 1

	right = newNode(n.order, false)
	for i := 0; i < bl; i++ {
		right.keys[i] = n.keys[l+1+i]
		right.children[i] = n.children[l+1+i]
	}
	right.children[bl] = n.children[n.order]
	right.count = int32(bl)

	promoted = n.keys[l]
	n.count = int32(l)
	return right, promoted
}

// removeKey removes key (and its paired address) from a leaf, returning the
// address that was associated with it, or NoAddress if key wasn't present.
func (n *node) removeKey(key int32) int64 {
	if !n.isLeaf() {
		return NoAddress
	}
	c := n.numKeys()
	for i := int32(0); i < c; i++ {
		if n.keys[i] == key {
			addr := n.children[i]
			for j := i; j < c-1; j++ {
				n.keys[j] = n.keys[j+1]
				n.children[j] = n.children[j+1]
			}
			n.count = -(c - 1)
			return addr
		}
	}
	return NoAddress
}

// getKeyForChild returns the separator immediately to the left of the child
// at address addr, in a branch. Used during borrow/merge to find the
// separator key that currently sits between two adjacent children.
func (n *node) getKeyForChild(addr int64) (int32, bool) {
	if n.isLeaf() {
		return 0, false
	}
	c := n.numKeys()
	for i := int32(1); i <= c; i++ {
		if n.children[i] == addr {
			return n.keys[i-1], true
		}
	}
	return 0, false
}

// removeKeyLeftOf removes the separator (and its associated child slot) that
// sits immediately to the left of the child at address addr.
func (n *node) removeKeyLeftOf(addr int64) {
	if n.isLeaf() {
		return
	}
	c := n.numKeys()
	var i int32
	for i = 1; i <= c; i++ {
		if n.children[i] == addr {
			break
		}
	}
	for j := i; j <= c; j++ {
		n.keys[j-1] = n.keys[j]
		n.children[j] = n.children[j+1]
	}
	n.count--
}

// nodeRecordSize is the number of bytes a node of the given order occupies
// on disk: one 32-bit count, order-1 32-bit keys, order 64-bit slots.
func nodeRecordSize(order int) int {
	return 4 + (order-1)*keySize + order*addrSize
}

// encode serializes n into a nodeRecordSize(n.order)-byte buffer.
func (n *node) encode() []byte {
	buf := make([]byte, nodeRecordSize(n.order))
	binary.BigEndian.PutUint32(buf[0:4], uint32(n.count))
	off := 4
	for i := 0; i < n.order-1; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(n.keys[i]))
		off += 4
	}
	for i := 0; i < n.order; i++ {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(n.children[i]))
		off += 8
	}
	return buf
}

// decodeNode deserializes a nodeRecordSize(order)-byte buffer read from
// address addr into a node.
func decodeNode(order int, addr int64, buf []byte) *node {
	n := &node{
		order:    order,
		address:  addr,
		keys:     make([]int32, order),
		children: make([]int64, order+1),
	}
	n.count = int32(binary.BigEndian.Uint32(buf[0:4]))
	off := 4
	for i := 0; i < order-1; i++ {
		n.keys[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	for i := 0; i < order; i++ {
		n.children[i] = int64(binary.BigEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	return n
}
