// Package digest computes content fingerprints used to confirm that a
// close/reopen cycle preserved a table's rows and a tree's key sequence
// exactly, without comparing every field by hand.
package digest

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"

	"bplustable/pkg/btree"
	"bplustable/pkg/rowtable"
)

// RowTable folds every row's key and field bytes into a single xxhash
// digest, in ascending key order, so a table with a stable row set produces
// a stable digest regardless of how those rows are laid out on disk.
func RowTable(t *rowtable.Table) (uint64, error) {
	rows, err := t.RangeSearch(minInt32, maxInt32)
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	var keyBuf [4]byte
	for _, row := range rows {
		binary.BigEndian.PutUint32(keyBuf[:], uint32(row.Key))
		h.Write(keyBuf[:])
		for _, field := range row.Fields {
			h.Write([]byte(field))
		}
	}
	return h.Sum64(), nil
}

// Tree folds the tree's key sequence, visited via its leaf sibling chain,
// into a single murmur3 digest.
func Tree(t *btree.Tree) (uint64, error) {
	c, err := t.CursorAtStart()
	if err != nil {
		return 0, err
	}
	var buf []byte
	var keyBuf [4]byte
	for {
		e, ok := c.Entry()
		if !ok {
			break
		}
		binary.BigEndian.PutUint32(keyBuf[:], uint32(e.Key))
		buf = append(buf, keyBuf[:]...)
		if c.Next() {
			break
		}
	}
	if err := c.Err(); err != nil {
		return 0, err
	}
	return murmur3.Sum64(buf), nil
}

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)
