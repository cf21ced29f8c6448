package coff

// RelocType identifies what a RelocatableVar's target address means. These
// map onto the Microsoft PE/COFF relocation-type constants at serialisation
// time (see RelocType.rawType), not here, because the mapping
// depends on the owning object's target machine.
type RelocType int

const (
	// VARelocate32 is a 32-bit absolute virtual address fixup. Valid only
	// against an x86 (MachineX86) object; see SPEC_FULL.md open question 1.
	VARelocate32 RelocType = iota + 1
	// VARelocate64 is a 64-bit absolute virtual address fixup, used on x64.
	VARelocate64
	// RVARelocate is a 32-bit relative-virtual-address fixup (address
	// minus image base), used for cross-section references that must
	// survive relocation at arbitrary load addresses.
	RVARelocate
)

// RelocatableVar is one pending relocation: a named external symbol, the
// section and byte offset within that section's raw data that must be
// patched, a width in bytes, and a relocation type. Offset is relative to
// the section's raw data at the time PushRelocs resolves the symbol name,
// not to the final file layout.
type RelocatableVar struct {
	Symbol  string
	Section *SectionBuilder
	Offset  uint32
	Size    int
	Type    RelocType
}

// NewRelocatableVar builds a pending relocation bound to symbol, to be
// applied at offset bytes into section's raw data.
func NewRelocatableVar(symbol string, section *SectionBuilder, offset uint32, size int, relocType RelocType) *RelocatableVar {
	return &RelocatableVar{Symbol: symbol, Section: section, Offset: offset, Size: size, Type: relocType}
}

// Shift moves the stored offset by delta, used when a section builder
// concatenates multiple raw blocks via AppendData and a later block's
// relocations need their offsets rebased past the earlier ones.
func (r *RelocatableVar) Shift(delta uint32) {
	r.Offset += delta
}

// Set overwrites every field in place; Get reads them back. Both exist
// because the original API exposed a mutable pending-relocation object
// rather than plain field access; here they are thin wrappers kept for that
// calling convention (ImpSectionBuilder itself builds a fresh
// RelocatableVar per call site and does not use them).
func (r *RelocatableVar) Set(symbol string, section *SectionBuilder, offset uint32, size int, relocType RelocType) {
	r.Symbol = symbol
	r.Section = section
	r.Offset = offset
	r.Size = size
	r.Type = relocType
}

func (r *RelocatableVar) Get() (symbol string, section *SectionBuilder, offset uint32, size int, relocType RelocType) {
	return r.Symbol, r.Section, r.Offset, r.Size, r.Type
}

// Microsoft PE/COFF relocation-type constants actually emitted here.
const (
	relI386Dir32    = 0x6
	relI386RelNb32  = 0x7
	relAmd64Addr64  = 0x1
	relAmd64AddrNb  = 0x3
)

// rawType maps a caller-facing RelocType onto the raw IMAGE_REL_* constant
// for machine. VARelocate32 is only meaningful against an x86 object; x64
// absolute relocations must use VARelocate64 instead of being silently
// reinterpreted (SPEC_FULL.md open question 1) — requesting VARelocate32
// against a non-x86 machine here simply falls through to the x86 encoding,
// since CoffBuilder.PushRelocs rejects the combination before calling it.
func (rt RelocType) rawType(machine Machine) uint16 {
	switch rt {
	case VARelocate32:
		return relI386Dir32
	case VARelocate64:
		return relAmd64Addr64
	case RVARelocate:
		if machine == MachineX64 {
			return relAmd64AddrNb
		}
		return relI386RelNb32
	default:
		return 0
	}
}

// resolvedReloc is a relocation after PushRelocs has located its symbol in
// the symbol table. This is what actually gets serialised into a section's
// IMAGE_RELOCATION array.
type resolvedReloc struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}
