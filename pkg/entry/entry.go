// Package entry defines the key/address pair the tree indexes and the row
// table stores behind it.
package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Size is the marshaled size of an Entry in bytes: a 32-bit signed key
// followed by a 64-bit signed address, both big-endian.
const Size = 4 + 8

// NoAddress is the sentinel address denoting the absence of a row or node.
// Address 0 is never a live block; block 0 is reserved for the file header.
const NoAddress int64 = 0

// Entry is a key-address pair, as stored in a B+Tree leaf.
type Entry struct {
	Key     int32
	Address int64
}

// New constructs a new Entry with the specified key and address.
func New(key int32, address int64) Entry {
	return Entry{Key: key, Address: address}
}

// Marshal serializes an entry into a 12-byte big-endian array.
func (e Entry) Marshal() []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(e.Key))
	binary.BigEndian.PutUint64(buf[4:12], uint64(e.Address))
	return buf
}

// Unmarshal deserializes a 12-byte big-endian array into an Entry.
func Unmarshal(data []byte) Entry {
	key := int32(binary.BigEndian.Uint32(data[0:4]))
	addr := int64(binary.BigEndian.Uint64(data[4:12]))
	return Entry{Key: key, Address: addr}
}

// Print writes the entry to the specified writer as "(<key>, <address>) ".
func (e Entry) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d) ", e.Key, e.Address)
}
