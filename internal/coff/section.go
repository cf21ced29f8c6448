package coff

import "encoding/binary"

// SectionCharacteristic is the caller-facing characteristics bitmap passed
// to SetCharacteristics; it is translated into the raw PE/COFF
// IMAGE_SCN_* bit pattern by RawCharacteristic.
type SectionCharacteristic uint32

const (
	SecRead SectionCharacteristic = 1 << iota
	SecWrite
	SecExec
	SecCode
	SecAlign1
	SecAlign2
	SecAlign4
	SecAlign8
	SecAlign16
	SecAlign32
	SecAlign64
	SecUninit
	SecComdat
)

// SectionComdat selects how the linker deduplicates identically named
// COMDAT sections across object members (IMAGE_COMDAT_SELECT_*).
type SectionComdat int

const (
	ComdatNoDuplicate SectionComdat = iota + 1
	ComdatSelectAny
	ComdatSelectSameSize
	ComdatSelectSame
	ComdatAssociative
	ComdatSelectLargest
)

// Raw IMAGE_SCN_* bits this package actually emits.
const (
	rawRead    = 0x40000000
	rawWrite   = 0x80000000
	rawExec    = 0x20000000
	rawCode    = 0x00000020
	rawUninit  = 0x00000080
	rawComdat  = 0x00001000
	nrelocOvfl = 0x01000000
)

// RawCharacteristic translates the caller-facing bitmap into the raw
// IMAGE_SCN_* pattern the section header actually carries. Alignment
// occupies a 4-bit field at bits 20-23: value = log2(alignment) + 1.
func RawCharacteristic(flags SectionCharacteristic) uint32 {
	var raw uint32
	if flags&SecRead != 0 {
		raw |= rawRead
	}
	if flags&SecWrite != 0 {
		raw |= rawWrite
	}
	if flags&SecExec != 0 {
		raw |= rawExec
	}
	if flags&SecCode != 0 {
		raw |= rawCode
	}
	if flags&SecUninit != 0 {
		raw |= rawUninit
	}
	if flags&SecComdat != 0 {
		raw |= rawComdat
	}

	var alignNibble uint32
	switch {
	case flags&SecAlign64 != 0:
		alignNibble = 7
	case flags&SecAlign32 != 0:
		alignNibble = 6
	case flags&SecAlign16 != 0:
		alignNibble = 5
	case flags&SecAlign8 != 0:
		alignNibble = 4
	case flags&SecAlign4 != 0:
		alignNibble = 3
	case flags&SecAlign2 != 0:
		alignNibble = 2
	case flags&SecAlign1 != 0:
		alignNibble = 1
	}
	raw |= alignNibble << 20

	return raw
}

// SectionBuilder owns one section's name, characteristics, raw bytes, and
// the relocations targeting that raw data. Appending it to a CoffBuilder
// assigns its 1-based SectionIndex and transfers logical ownership (the Go
// value itself is still just a pointer any caller can hold, but no other
// package mutates it once appended).
type SectionBuilder struct {
	name            [8]byte
	characteristics SectionCharacteristic
	data            []byte
	pending         []*RelocatableVar
	resolved        []resolvedReloc
	index           int
}

// NewSectionBuilder returns an empty, unnamed section.
func NewSectionBuilder() *SectionBuilder {
	return &SectionBuilder{}
}

// SetName truncates or null-pads name to the 8-byte inline field. Long
// section names are not supported at this level (spec.md section 4.4);
// callers needing an archive-style "/offset" name must handle that above
// this layer.
func (s *SectionBuilder) SetName(name string) {
	var buf [8]byte
	n := copy(buf[:], name)
	_ = n
	s.name = buf
}

// Name returns the 8-byte inline name with trailing nulls trimmed.
func (s *SectionBuilder) Name() string {
	end := 0
	for end < len(s.name) && s.name[end] != 0 {
		end++
	}
	return string(s.name[:end])
}

// SetCharacteristics installs the caller-facing characteristics bitmap.
func (s *SectionBuilder) SetCharacteristics(flags SectionCharacteristic) {
	s.characteristics = flags
}

// AppendData concatenates data to the section's raw buffer. Each reloc's
// offset is shifted by the length already present before this call, and
// ownership of the reloc slice transfers to the section.
func (s *SectionBuilder) AppendData(data []byte, relocs []*RelocatableVar) {
	base := uint32(len(s.data))
	s.data = append(s.data, data...)
	for _, r := range relocs {
		r.Shift(base)
		s.pending = append(s.pending, r)
	}
}

// DataLength returns the raw data length, not including the section header.
func (s *SectionBuilder) DataLength() int { return len(s.data) }

// RawData returns the raw section bytes, not including the header.
func (s *SectionBuilder) RawData() []byte { return s.data }

// SetSectionIndex is called by CoffBuilder.AppendSection; callers should
// not normally call it directly.
func (s *SectionBuilder) SetSectionIndex(i int) { s.index = i }

// SectionIndex returns the 1-based index assigned by AppendSection, or 0
// if the section has not yet been appended.
func (s *SectionBuilder) SectionIndex() int { return s.index }

// HeaderLength is always 40 for a PE/COFF section header.
func (s *SectionBuilder) HeaderLength() int { return 40 }

// RawCharacteristic returns this section's raw IMAGE_SCN_* bit pattern.
func (s *SectionBuilder) RawCharacteristic() uint32 {
	return RawCharacteristic(s.characteristics)
}

// RawHeader serialises the 40-byte IMAGE_SECTION_HEADER. rawOffset is the
// absolute file offset of this section's raw data; relocOffset is the
// absolute file offset of this section's relocation table (0 if none).
// VirtualSize and VirtualAddress are always 0 for a relocatable object —
// they are only meaningful once the linker places the section in an image.
func (s *SectionBuilder) RawHeader(rawOffset, relocOffset uint32) []byte {
	out := make([]byte, 40)
	copy(out[0:8], s.name[:])
	// VirtualSize, VirtualAddress left zero.
	binary.LittleEndian.PutUint32(out[16:20], uint32(len(s.data)))
	binary.LittleEndian.PutUint32(out[20:24], rawOffset)

	numRelocs := len(s.resolved)
	characteristics := s.RawCharacteristic()
	if numRelocs > 0 {
		binary.LittleEndian.PutUint32(out[24:28], relocOffset)
	}
	// PointerToLineNumbers (out[28:32]) left zero.
	if numRelocs > 0xFFFF {
		// Extended relocation format: the header's own count field is
		// capped at 0xFFFF with the overflow flag set, and
		// RawRelocationData writes a synthetic first entry whose
		// VirtualAddress carries the true count (see SPEC_FULL.md open
		// question 2).
		binary.LittleEndian.PutUint16(out[32:34], 0xFFFF)
		characteristics |= nrelocOvfl
	} else {
		binary.LittleEndian.PutUint16(out[32:34], uint16(numRelocs))
	}
	// NumberOfLineNumbers (out[34:36]) left zero.
	binary.LittleEndian.PutUint32(out[36:40], characteristics)
	return out
}

// PushRelocs resolves every pending RelocatableVar against symtab (the
// most recently added matching symbol wins) and freezes the section's
// relocation table. machine selects the relocation-type encoding (see
// SPEC_FULL.md open question 1); it must be the same value the owning
// CoffBuilder was constructed with. PushRelocs must be called after every
// symbol the section's relocations reference has been added.
func (s *SectionBuilder) PushRelocs(symtab *SymbolTable, machine Machine) {
	s.resolved = s.resolved[:0]
	for _, r := range s.pending {
		idx := symtab.lastIndexNamed(r.Symbol)
		s.resolved = append(s.resolved, resolvedReloc{
			VirtualAddress:   r.Offset,
			SymbolTableIndex: uint32(idx),
			Type:             r.Type.rawType(machine),
		})
	}
}

// RelocationDataLength returns the size in bytes of this section's
// serialised relocation table (10 bytes per entry, plus one synthetic
// count entry when there are more than 0xFFFF relocations).
func (s *SectionBuilder) RelocationDataLength() int {
	n := len(s.resolved)
	if n > 0xFFFF {
		n++
	}
	return n * 10
}

// RawRelocationData serialises the resolved relocation table. With more
// than 0xFFFF relocations the table starts with a synthetic entry whose
// VirtualAddress holds the total entry count, that entry included.
func (s *SectionBuilder) RawRelocationData() []byte {
	out := make([]byte, s.RelocationDataLength())
	base := 0
	if len(s.resolved) > 0xFFFF {
		binary.LittleEndian.PutUint32(out[0:4], uint32(len(s.resolved)+1))
		base = 10
	}
	for i, r := range s.resolved {
		off := base + i*10
		binary.LittleEndian.PutUint32(out[off:off+4], r.VirtualAddress)
		binary.LittleEndian.PutUint32(out[off+4:off+8], r.SymbolTableIndex)
		binary.LittleEndian.PutUint16(out[off+8:off+10], r.Type)
	}
	return out
}

// CreateAuxSymbol builds the 18-byte aux record describing a COMDAT
// section: length, relocation count, line-number count, a zero checksum
// (this generator never computes one), the associated section's 1-based
// index (0 if associated is nil), the selection policy, and three padding
// bytes.
func (s *SectionBuilder) CreateAuxSymbol(associated *SectionBuilder, selection SectionComdat) [18]byte {
	var aux [18]byte
	binary.LittleEndian.PutUint32(aux[0:4], uint32(len(s.data)))
	binary.LittleEndian.PutUint16(aux[4:6], uint16(len(s.resolved)))
	// NumberOfLineNumbers (aux[6:8]) and CheckSum (aux[8:12]) left zero.
	var assocIndex uint16
	if associated != nil {
		assocIndex = uint16(associated.SectionIndex())
	}
	binary.LittleEndian.PutUint16(aux[12:14], assocIndex)
	aux[14] = byte(selection)
	return aux
}
