// Package rowtable implements a fixed-schema record store layered on top of
// a B+Tree index: the tree owns key uniqueness and lookup, and the table
// contributes only what the tree doesn't already do - materializing rows
// at an address and recycling freed row slots through its own free list.
package rowtable

import "encoding/binary"

// keySize is the width of a row's key field on disk.
const keySize = 4

// charSize is the width of one field character: 16-bit big-endian unsigned.
const charSize = 2

// Row is a table record: a unique key and an ordered sequence of
// fixed-length string fields, one per schema column.
type Row struct {
	Key     int32
	Fields  []string
	Address int64
}

// rowSize returns the byte length of one row record given the schema's
// per-field character lengths.
func rowSize(fieldLengths []int32) int {
	size := keySize
	for _, l := range fieldLengths {
		size += int(l) * charSize
	}
	return size
}

// encodeRow serializes a row's key and fields into a fixed-size record,
// null-padding each field out to its declared length.
func encodeRow(key int32, fields []string, fieldLengths []int32) []byte {
	buf := make([]byte, rowSize(fieldLengths))
	binary.BigEndian.PutUint32(buf[0:keySize], uint32(key))
	off := keySize
	for i, length := range fieldLengths {
		runes := []rune(fields[i])
		for j := 0; j < int(length); j++ {
			var c rune
			if j < len(runes) {
				c = runes[j]
			}
			binary.BigEndian.PutUint16(buf[off:off+charSize], uint16(c))
			off += charSize
		}
	}
	return buf
}

// decodeRow deserializes a fixed-size record into a Row. A field's logical
// string ends at its first null character, mirroring the reference
// implementation's read-until-null-or-length behavior.
func decodeRow(addr int64, buf []byte, fieldLengths []int32) Row {
	key := int32(binary.BigEndian.Uint32(buf[0:keySize]))
	fields := make([]string, len(fieldLengths))
	off := keySize
	for i, length := range fieldLengths {
		runes := make([]rune, 0, length)
		for j := 0; j < int(length); j++ {
			c := rune(binary.BigEndian.Uint16(buf[off : off+charSize]))
			off += charSize
			if c == 0 {
				off += (int(length) - j - 1) * charSize
				break
			}
			runes = append(runes, c)
		}
		fields[i] = string(runes)
	}
	return Row{Key: key, Fields: fields, Address: addr}
}
