package coff

import "encoding/binary"

// StorageType is the caller-facing symbol classification; it maps onto the
// COFF storage-class byte (and, for the two function variants, the type
// field) at AddSymbol time.
type StorageType int

const (
	SymExtern StorageType = iota + 1
	SymStatic
	SymSection
	SymFunction
	SymStaticFunction
)

// COFF storage-class constants (IMAGE_SYM_CLASS_*).
const (
	classExternal = 2
	classStatic   = 3
)

// COFF symbol type constant for "function".
const typeFunction = 0x20

// Absolute/debug pseudo section indices (IMAGE_SYM_*).
const (
	SectionAbsolute = -1
	SectionDebug    = -2
)

const symbolRecordSize = 18

// symbolRecord is one 18-byte slot: either a primary symbol or an aux
// record copied in verbatim.
type symbolRecord struct {
	nameInline [8]byte
	value      uint32
	section    int16
	typ        uint16
	class      uint8
	auxCount   uint8
	isAux      bool
	auxRaw     [18]byte
	isPublic   bool
	name       string
}

// SymbolTable holds ordered symbol records (including aux slots) plus the
// long-name string table backing it.
type SymbolTable struct {
	strings *StringTable
	records []symbolRecord
}

// NewSymbolTable binds a symbol table to the string table that stores any
// symbol name longer than 8 bytes. The two are bound for the object's
// lifetime; SetStringTable does not exist as a separate step here because
// Go constructors can take the dependency directly.
func NewSymbolTable(strings *StringTable) *SymbolTable {
	return &SymbolTable{strings: strings}
}

// AddSymbol appends one primary record occupying 1+auxCount slots and
// returns the slot index of the primary record (the "symbol table index"
// referenced by relocations). section == nil means an external symbol
// (section index 0).
func (t *SymbolTable) AddSymbol(section *SectionBuilder, value uint32, name string, class StorageType, auxCount int) int {
	index := len(t.records)

	var sectionIndex int16
	if section != nil {
		sectionIndex = int16(section.SectionIndex())
	}

	var storageClass uint8
	var typ uint16
	var isPublic bool
	switch class {
	case SymExtern:
		storageClass = classExternal
		isPublic = true
	case SymStatic:
		storageClass = classStatic
	case SymSection:
		storageClass = classStatic
	case SymFunction:
		storageClass = classExternal
		typ = typeFunction
		isPublic = true
	case SymStaticFunction:
		storageClass = classStatic
		typ = typeFunction
	}

	rec := symbolRecord{
		value:      value,
		section:    sectionIndex,
		typ:        typ,
		class:      storageClass,
		auxCount:   uint8(auxCount),
		isPublic:   isPublic,
		name:       name,
	}
	t.encodeName(&rec, name)
	t.records = append(t.records, rec)

	for i := 0; i < auxCount; i++ {
		t.records = append(t.records, symbolRecord{isAux: true})
	}

	return index
}

// AddAuxData copies an already-built 18-byte aux record (typically produced
// by SectionBuilder.CreateAuxSymbol) into the next free slot and returns its
// index. The caller retains ownership of the source array.
func (t *SymbolTable) AddAuxData(record [18]byte) int {
	index := len(t.records)
	t.records = append(t.records, symbolRecord{isAux: true, auxRaw: record})
	return index
}

// PublicSymbolNames returns, in insertion order, the names of every
// externally visible symbol (SymExtern and SymFunction) — the set an
// archive indexer needs for the first/second linker members.
func (t *SymbolTable) PublicSymbolNames() []string {
	var names []string
	for _, rec := range t.records {
		if !rec.isAux && rec.isPublic {
			names = append(names, rec.name)
		}
	}
	return names
}

// Count returns the number of 18-byte slots (primary + aux) in the table.
func (t *SymbolTable) Count() int {
	return len(t.records)
}

// lastIndexNamed returns the slot index of the most recently added primary
// symbol named name, or -1 if none matches. PushRelocs uses this so that a
// relocation always resolves to the symbol added immediately before it, per
// spec.md invariant (ii).
func (t *SymbolTable) lastIndexNamed(name string) int {
	for i := len(t.records) - 1; i >= 0; i-- {
		rec := t.records[i]
		if rec.isAux {
			continue
		}
		if rec.name == name {
			return i
		}
	}
	return -1
}

func (t *SymbolTable) encodeName(rec *symbolRecord, name string) {
	if len(name) <= 8 {
		copy(rec.nameInline[:], name)
		return
	}
	offset := t.strings.Append(name)
	// First four bytes zero flags "this is a string-table offset", the
	// remaining four bytes hold the offset itself — the string
	// fingerprint scheme spec.md section 3 describes.
	binary.LittleEndian.PutUint32(rec.nameInline[4:8], offset)
}

// DataLength returns the serialised length in bytes: 18 bytes per slot.
func (t *SymbolTable) DataLength() int {
	return len(t.records) * symbolRecordSize
}

// RawData serialises every slot in insertion order.
func (t *SymbolTable) RawData() []byte {
	out := make([]byte, t.DataLength())
	for i, rec := range t.records {
		off := i * symbolRecordSize
		if rec.isAux {
			copy(out[off:off+18], rec.auxRaw[:])
			continue
		}
		copy(out[off:off+8], rec.nameInline[:])
		binary.LittleEndian.PutUint32(out[off+8:off+12], rec.value)
		binary.LittleEndian.PutUint16(out[off+12:off+14], uint16(rec.section))
		binary.LittleEndian.PutUint16(out[off+14:off+16], rec.typ)
		out[off+16] = rec.class
		out[off+17] = rec.auxCount
	}
	return out
}
