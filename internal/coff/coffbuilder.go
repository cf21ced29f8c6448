// Package coff implements the Microsoft PE/COFF object-file encoder stack:
// string table, symbol table, section builder, and the CoffBuilder that
// composes them into one byte-exact relocatable object image.
package coff

import (
	"encoding/binary"

	"github.com/xyproto/implibgen/internal/ierrors"
)

// Machine identifies the target architecture of a COFF object, matching
// the IMAGE_FILE_MACHINE_* constants.
type Machine uint16

const (
	MachineX86  Machine = 0x14C
	MachineX64  Machine = 0x8664
	MachineIA64 Machine = 0x200
)

// Object file characteristics this package sets unconditionally: the
// object carries no relocations stripped, no line numbers stripped — a
// plain relocatable object has characteristics 0 (none of the
// IMAGE_FILE_* bits that describe an *image* apply to .obj files).
const fileHeaderSize = 20
const sectionHeaderSize = 40

// CoffBuilder composes sections, a symbol table and a string table into one
// relocatable COFF object image. Correct use follows the state machine
// AddSections* -> AddSymbols* -> PushRelocs -> (DataLength|RawData)*;
// calling PushRelocs twice returns a BadInput error instead of silently
// corrupting the object, a conservative strengthening over the source,
// which left this undefined.
type CoffBuilder struct {
	machine      Machine
	sections     []*SectionBuilder
	strings      *StringTable
	symbols      *SymbolTable
	relocsPushed bool
}

// NewCoffBuilder returns an empty object targeting machine.
func NewCoffBuilder(machine Machine) *CoffBuilder {
	st := NewStringTable()
	return &CoffBuilder{
		machine: machine,
		strings: st,
		symbols: NewSymbolTable(st),
	}
}

// AppendSection assigns section the next 1-based section index and adds it
// to this object. Ownership of section transfers to the builder.
func (c *CoffBuilder) AppendSection(section *SectionBuilder) int {
	c.sections = append(c.sections, section)
	index := len(c.sections)
	section.SetSectionIndex(index)
	return index
}

// StringTable returns the string table backing this object's symbol names.
func (c *CoffBuilder) StringTable() *StringTable { return c.strings }

// SymbolTable returns the symbol table this object is accumulating.
func (c *CoffBuilder) SymbolTable() *SymbolTable { return c.symbols }

// Machine returns the target architecture this object was built for.
func (c *CoffBuilder) Machine() Machine { return c.machine }

// PushRelocs walks every section in append order and resolves its pending
// relocations against the symbol table. It must be called exactly once,
// after every symbol a relocation references has been added. A VARelocate32
// relocation on an object whose machine is not MachineX86 is rejected with
// a BadInput error.
func (c *CoffBuilder) PushRelocs() error {
	if c.relocsPushed {
		return ierrors.New(ierrors.BadInput, "CoffBuilder.PushRelocs", nil)
	}
	if c.machine != MachineX86 {
		for _, s := range c.sections {
			for _, r := range s.pending {
				if r.Type == VARelocate32 {
					return ierrors.New(ierrors.BadInput, "CoffBuilder.PushRelocs", nil)
				}
			}
		}
	}
	for _, s := range c.sections {
		s.PushRelocs(c.symbols, c.machine)
	}
	c.relocsPushed = true
	return nil
}

// DataLength returns the total byte length RawData would produce.
func (c *CoffBuilder) DataLength() int {
	total := fileHeaderSize + len(c.sections)*sectionHeaderSize
	for _, s := range c.sections {
		total += s.DataLength()
		total += s.RelocationDataLength()
	}
	total += c.symbols.DataLength()
	total += c.strings.DataLength()
	return total
}

// RawData assembles the complete object image: file header, section
// headers (with back-patched data/relocation offsets), raw section data,
// per-section relocation tables, the symbol table, and finally the string
// table.
func (c *CoffBuilder) RawData() []byte {
	headerEnd := fileHeaderSize + len(c.sections)*sectionHeaderSize

	// First pass: lay out raw data blocks, then relocation tables, so
	// every section header can be back-patched with absolute offsets.
	dataOffsets := make([]uint32, len(c.sections))
	relocOffsets := make([]uint32, len(c.sections))
	offset := uint32(headerEnd)
	for i, s := range c.sections {
		dataOffsets[i] = offset
		offset += uint32(s.DataLength())
	}
	for i, s := range c.sections {
		if s.RelocationDataLength() > 0 {
			relocOffsets[i] = offset
			offset += uint32(s.RelocationDataLength())
		}
	}
	symTableOffset := offset

	out := make([]byte, 0, int(offset)+c.symbols.DataLength()+c.strings.DataLength())

	var fileHeader [fileHeaderSize]byte
	binary.LittleEndian.PutUint16(fileHeader[0:2], uint16(c.machine))
	binary.LittleEndian.PutUint16(fileHeader[2:4], uint16(len(c.sections)))
	// TimeDateStamp (4:8) left zero.
	binary.LittleEndian.PutUint32(fileHeader[8:12], symTableOffset)
	binary.LittleEndian.PutUint32(fileHeader[12:16], uint32(c.symbols.Count()))
	// SizeOfOptionalHeader (16:18) is zero for a relocatable object.
	binary.LittleEndian.PutUint16(fileHeader[18:20], c.characteristics())
	out = append(out, fileHeader[:]...)

	for i, s := range c.sections {
		out = append(out, s.RawHeader(dataOffsets[i], relocOffsets[i])...)
	}
	for _, s := range c.sections {
		out = append(out, s.RawData()...)
	}
	for _, s := range c.sections {
		out = append(out, s.RawRelocationData()...)
	}
	out = append(out, c.symbols.RawData()...)
	out = append(out, c.strings.RawData()...)

	return out
}

// characteristics returns the file-header Characteristics field. Import
// library member objects and ordinary object files alike leave this at the
// minimal per-machine default the Microsoft linker expects on a .obj: no
// bits beyond what identifies a 32-bit-address-capable object machine are
// required to be set because none of IMAGE_FILE_RELOCS_STRIPPED,
// IMAGE_FILE_DEBUG_STRIPPED etc. describe anything this generator produces.
func (c *CoffBuilder) characteristics() uint16 {
	return 0
}
