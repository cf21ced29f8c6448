package coff

import "encoding/binary"

// StringTable is an append-only pool of names longer than the 8-byte
// inline symbol field. Its serialised form is a 4-byte little-endian total
// size followed by the null-terminated strings themselves, so the first
// real string always begins at offset 4 — offset 0 is reserved for callers
// that want to express "no name".
type StringTable struct {
	data []byte
}

// NewStringTable returns an empty table. The 4-byte size prefix is not
// materialised until RawData is called; DataLength accounts for it either
// way.
func NewStringTable() *StringTable {
	return &StringTable{}
}

// Append writes name plus a terminating null and returns the byte offset
// (counting the 4-byte size prefix) at which it begins. No deduplication is
// performed; callers may append the same name twice and get two offsets.
func (t *StringTable) Append(name string) uint32 {
	offset := uint32(len(t.data)) + 4
	t.data = append(t.data, name...)
	t.data = append(t.data, 0)
	return offset
}

// Get returns the null-terminated string stored at offset (an offset
// produced by Append, including the 4-byte prefix).
func (t *StringTable) Get(offset uint32) string {
	if offset < 4 {
		return ""
	}
	i := int(offset - 4)
	if i >= len(t.data) {
		return ""
	}
	end := i
	for end < len(t.data) && t.data[end] != 0 {
		end++
	}
	return string(t.data[i:end])
}

// DataLength returns the serialised length, including the 4-byte prefix.
func (t *StringTable) DataLength() int {
	return len(t.data) + 4
}

// RawData serialises the table as [u32 total size][bytes...].
func (t *StringTable) RawData() []byte {
	out := make([]byte, t.DataLength())
	binary.LittleEndian.PutUint32(out[0:4], uint32(t.DataLength()))
	copy(out[4:], t.data)
	return out
}
