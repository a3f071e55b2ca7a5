package btree

import "bplustable/pkg/entry"

// NoAddress is the sentinel address denoting the absence of a node.
// Address 0 is never a live node; block 0 is reserved for the file header.
const NoAddress = entry.NoAddress

// Header layout, in bytes, at the start of the backing file.
const (
	rootOffset      int64 = 0  // 8 bytes: address of the root node.
	freeHeadOffset  int64 = 8  // 8 bytes: head of the free list.
	blockSizeOffset int64 = 16 // 4 bytes: block size.
	headerSize      int64 = 20
)

// keySize and addrSize are the on-disk widths of a key and an address.
const (
	keySize  = 4
	addrSize = 8
)
