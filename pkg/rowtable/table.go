package rowtable

import (
	"encoding/binary"
	"errors"

	"bplustable/pkg/btree"
	"bplustable/pkg/pager"
)

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("rowtable: use of closed table")

// NoAddress is the sentinel denoting the absence of a row.
const NoAddress int64 = 0

// Table is a fixed-schema row store whose key uniqueness and lookup are
// delegated entirely to a backing Tree; the table itself owns only the row
// file and the free list threading through its reclaimed slots.
type Table struct {
	rows         *pager.Pager
	tree         *btree.Tree
	free         int64
	fieldLengths []int32
	closed       bool
}

// freeHeadOffset is the byte offset of the row free-list head in the row
// file header: past numOtherFields and its per-field lengths, not
// hard-coded, per the schema's actual field count.
func freeHeadOffset(numOtherFields int) int64 {
	return int64(4 + 4*numOtherFields)
}

func headerSize(numOtherFields int) int64 {
	return freeHeadOffset(numOtherFields) + 8
}

// Create deletes any existing table at path and starts a fresh one with the
// given per-field character lengths, additionally creating path+".btree" as
// its key index with the given block size.
func Create(path string, fieldLengths []int32, blockSize int) (*Table, error) {
	p, err := pager.Create(path)
	if err != nil {
		return nil, err
	}
	t := &Table{rows: p, fieldLengths: fieldLengths, free: NoAddress}
	if err := t.writeHeader(); err != nil {
		p.Close()
		return nil, err
	}
	tree, err := btree.Create(path+".btree", blockSize)
	if err != nil {
		p.Close()
		return nil, err
	}
	t.tree = tree
	return t, nil
}

// Open reopens an existing table at path along with its btree index.
func Open(path string) (*Table, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	t := &Table{rows: p}
	if err := t.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	tree, err := btree.Open(path + ".btree")
	if err != nil {
		p.Close()
		return nil, err
	}
	t.tree = tree
	return t, nil
}

func (t *Table) writeHeader() error {
	n := len(t.fieldLengths)
	buf := make([]byte, headerSize(n))
	binary.BigEndian.PutUint32(buf[0:4], uint32(n))
	for i, l := range t.fieldLengths {
		off := 4 + 4*i
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(l))
	}
	binary.BigEndian.PutUint64(buf[freeHeadOffset(n):], uint64(t.free))
	return t.rows.WriteAt(buf, 0)
}

func (t *Table) readHeader() error {
	var countBuf [4]byte
	if err := t.rows.ReadAt(countBuf[:], 0); err != nil {
		return err
	}
	n := int(binary.BigEndian.Uint32(countBuf[:]))

	buf := make([]byte, headerSize(n)-4)
	if err := t.rows.ReadAt(buf, 4); err != nil {
		return err
	}
	fieldLengths := make([]int32, n)
	for i := 0; i < n; i++ {
		off := 4 * i
		fieldLengths[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	}
	t.fieldLengths = fieldLengths
	freeOff := int(freeHeadOffset(n)) - 4
	t.free = int64(binary.BigEndian.Uint64(buf[freeOff : freeOff+8]))
	return nil
}

func (t *Table) setFree(addr int64) error {
	t.free = addr
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(addr))
	return t.rows.WriteAt(buf, freeHeadOffset(len(t.fieldLengths)))
}

// nextFree pops the free-list head, or the current end of file if the list
// is empty, advancing the head forward.
func (t *Table) nextFree() (int64, error) {
	addr, err := t.peekNextFree()
	if err != nil {
		return 0, err
	}
	if t.free == NoAddress {
		return addr, nil
	}
	buf := make([]byte, 8)
	if err := t.rows.ReadAt(buf, addr); err != nil {
		return 0, err
	}
	return addr, t.setFree(int64(binary.BigEndian.Uint64(buf)))
}

// peekNextFree reports the address the next inserted row will land at,
// without moving the free-list head forward.
func (t *Table) peekNextFree() (int64, error) {
	if t.free != NoAddress {
		return t.free, nil
	}
	return t.rows.Size()
}

// addToFree links addr's slot into the row free list.
func (t *Table) addToFree(addr int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.free))
	if err := t.rows.WriteAt(buf, addr); err != nil {
		return err
	}
	return t.setFree(addr)
}

// Insert adds a row under key if key isn't already present, returning true
// on success. The tree is asked whether key can be inserted at the address
// the next free row slot would occupy before that slot is actually
// committed, so the tree's index and the row's on-disk position always
// agree on where the row lives.
func (t *Table) Insert(key int32, fields []string) (bool, error) {
	if t.closed {
		return false, ErrClosed
	}
	peeked, err := t.peekNextFree()
	if err != nil {
		return false, err
	}
	ok, err := t.tree.Insert(key, peeked)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	addr, err := t.nextFree()
	if err != nil {
		return false, err
	}
	buf := encodeRow(key, fields, t.fieldLengths)
	return true, t.rows.WriteAt(buf, addr)
}

// Remove deletes the row for key, returning true if it was present.
func (t *Table) Remove(key int32) (bool, error) {
	if t.closed {
		return false, ErrClosed
	}
	addr, err := t.tree.Remove(key)
	if err != nil {
		return false, err
	}
	if addr == NoAddress {
		return false, nil
	}
	return true, t.addToFree(addr)
}

// Search returns the row for key, and whether it was found.
func (t *Table) Search(key int32) (Row, bool, error) {
	if t.closed {
		return Row{}, false, ErrClosed
	}
	addr, err := t.tree.Search(key)
	if err != nil {
		return Row{}, false, err
	}
	if addr == NoAddress {
		return Row{}, false, nil
	}
	row, err := t.readRow(addr)
	return row, err == nil, err
}

// RangeSearch returns every row with a key in [low, high], in ascending
// key order.
func (t *Table) RangeSearch(low, high int32) ([]Row, error) {
	if t.closed {
		return nil, ErrClosed
	}
	addrs, err := t.tree.RangeSearch(low, high)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(addrs))
	for _, addr := range addrs {
		row, err := t.readRow(addr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Table) readRow(addr int64) (Row, error) {
	buf := make([]byte, rowSize(t.fieldLengths))
	if err := t.rows.ReadAt(buf, addr); err != nil {
		return Row{}, err
	}
	return decodeRow(addr, buf, t.fieldLengths), nil
}

// Close releases the table's file handles, including its btree index.
func (t *Table) Close() error {
	if t.closed {
		return ErrClosed
	}
	t.closed = true
	if err := t.tree.Close(); err != nil {
		t.rows.Close()
		return err
	}
	return t.rows.Close()
}

// Tree returns the btree.Tree backing this table's key index, for
// collaborators (digests, stats tooling) that need to inspect it directly.
func (t *Table) Tree() *btree.Tree {
	return t.tree
}

// GetFileName returns the path backing this table's rows.
func (t *Table) GetFileName() string {
	return t.rows.GetFileName()
}

// FieldLengths returns the schema's declared per-field character lengths.
func (t *Table) FieldLengths() []int32 {
	return append([]int32(nil), t.fieldLengths...)
}

// Stats summarizes a table's row-slot usage.
type Stats struct {
	Live       int64 // rows reachable through the tree
	Free       int64 // slots linked into the row free list
	FileBlocks int64 // Live + Free
}

// Stats walks the row free list and asks the tree for its live row count to
// report row-slot usage.
func (t *Table) Stats() (Stats, error) {
	if t.closed {
		return Stats{}, ErrClosed
	}
	rows, err := t.RangeSearch(minInt32, maxInt32)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	s.Live = int64(len(rows))

	addr := t.free
	for addr != NoAddress {
		s.Free++
		buf := make([]byte, 8)
		if err := t.rows.ReadAt(buf, addr); err != nil {
			return Stats{}, err
		}
		addr = int64(binary.BigEndian.Uint64(buf))
	}
	s.FileBlocks = s.Live + s.Free
	return s, nil
}

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)
