package implib

import (
	"encoding/binary"

	"github.com/xyproto/implibgen/internal/coff"
)

// ImpSectionBuilder builds one complete COFF object member per call, all
// implementing the import-library convention spec.md section 4.7
// describes. A single value is reused across every call that builds
// members for one DLL.
type ImpSectionBuilder struct {
	arch Arch
}

// NewImpSectionBuilder returns a builder targeting arch.
func NewImpSectionBuilder(arch Arch) *ImpSectionBuilder {
	return &ImpSectionBuilder{arch: arch}
}

func (b *ImpSectionBuilder) newObject() *coff.CoffBuilder {
	return coff.NewCoffBuilder(b.arch.Machine())
}

// BuildImportDescriptor builds the .idata$2 import descriptor member for
// dllName. The descriptor's three relocations target: the local
// zero-length .idata$4/.idata$5 "head" sections this same object
// contributes (so that, once linked, this object's own first-in-link-order
// contribution to the merged .idata$4/.idata$5 sections is what the
// descriptor actually points at — see DESIGN.md for why this resolves the
// spec's "symbol __IMPORT_DESCRIPTOR_<dll> or the name table symbol for
// the first thunk group" hedge), and the DLL name string in .idata$6.
func (b *ImpSectionBuilder) BuildImportDescriptor(dllName string) *coff.CoffBuilder {
	c := b.newObject()

	desc := coff.NewSectionBuilder()
	desc.SetName(".idata$2")
	desc.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	c.AppendSection(desc)

	iltHead := coff.NewSectionBuilder()
	iltHead.SetName(".idata$4")
	iltHead.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	c.AppendSection(iltHead)

	iatHead := coff.NewSectionBuilder()
	iatHead.SetName(".idata$5")
	iatHead.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	c.AppendSection(iatHead)

	nameSec := coff.NewSectionBuilder()
	nameSec.SetName(".idata$6")
	nameSec.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign2)
	nameSec.AppendData(evenPadded([]byte(dllName+"\x00")), nil)
	c.AppendSection(nameSec)

	desc.AppendData(make([]byte, 20), []*coff.RelocatableVar{
		coff.NewRelocatableVar(iltHeadSymbol, desc, 0, 4, coff.RVARelocate),
		coff.NewRelocatableVar(nameSymbol, desc, 12, 4, coff.RVARelocate),
		coff.NewRelocatableVar(iatHeadSymbol, desc, 16, 4, coff.RVARelocate),
	})

	symtab := c.SymbolTable()
	symtab.AddSymbol(desc, 0, importDescriptorSymbol(dllName), coff.SymExtern, 0)
	symtab.AddSymbol(iltHead, 0, iltHeadSymbol, coff.SymSection, 0)
	symtab.AddSymbol(iatHead, 0, iatHeadSymbol, coff.SymSection, 0)
	symtab.AddSymbol(nameSec, 0, nameSymbol, coff.SymSection, 0)

	c.PushRelocs()
	return c
}

// BuildNullDescriptor builds the .idata$3 terminating descriptor, shared
// verbatim across every DLL's import library (spec.md section 4.7): 20
// zero bytes, no relocations, one public symbol
// __NULL_IMPORT_DESCRIPTOR.
func (b *ImpSectionBuilder) BuildNullDescriptor() *coff.CoffBuilder {
	c := b.newObject()
	sec := coff.NewSectionBuilder()
	sec.SetName(".idata$3")
	sec.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	sec.AppendData(make([]byte, 20), nil)
	c.AppendSection(sec)
	c.SymbolTable().AddSymbol(sec, 0, nullImportDescriptorSymbol, coff.SymExtern, 0)
	c.PushRelocs()
	return c
}

// BuildImportByNameThunk builds one by-name import thunk member: a .text
// jmp-indirect stub, .idata$4/.idata$5 ILT/IAT pointer slots referencing
// the .idata$6 hint/name entry, and the hint/name entry itself.
func (b *ImpSectionBuilder) BuildImportByNameThunk(impName, funcName, exportName string) *coff.CoffBuilder {
	return b.buildThunk(impName, funcName, exportName, 0, true)
}

// BuildImportByOrdinalThunk builds one by-ordinal import thunk member: the
// ILT/IAT pointer slots carry the ordinal flag bit set and the ordinal in
// the low bits; no hint/name entry or relocation is produced.
func (b *ImpSectionBuilder) BuildImportByOrdinalThunk(impName, funcName string, ordinal int) *coff.CoffBuilder {
	return b.buildThunk(impName, funcName, "", ordinal, false)
}

// BuildImportThunk builds a by-name thunk whose hint field is set to
// ordinal (a name lookup with a hint, rather than ordinal=0).
func (b *ImpSectionBuilder) BuildImportThunk(impName, funcName, exportName string, ordinal int) *coff.CoffBuilder {
	return b.buildThunkHinted(impName, funcName, exportName, ordinal)
}

func (b *ImpSectionBuilder) buildThunk(impName, funcName, exportName string, ordinal int, byName bool) *coff.CoffBuilder {
	if byName {
		return b.buildThunkHinted(impName, funcName, exportName, 0)
	}
	return b.buildOrdinalThunk(impName, funcName, ordinal)
}

func (b *ImpSectionBuilder) buildThunkHinted(impName, funcName, exportName string, hint int) *coff.CoffBuilder {
	c := b.newObject()
	pw := b.arch.PointerWidth()

	hintName := coff.NewSectionBuilder()
	hintName.SetName(".idata$6")
	hintName.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign2 | coff.SecComdat)
	var hb [2]byte
	binary.LittleEndian.PutUint16(hb[:], uint16(hint))
	body := append(hb[:], []byte(exportName+"\x00")...)
	hintName.AppendData(evenPadded(body), nil)
	c.AppendSection(hintName)
	hintSym := impName + "_hint"
	c.SymbolTable().AddSymbol(hintName, 0, hintSym, coff.SymSection, 0)
	hintAux := hintName.CreateAuxSymbol(nil, coff.ComdatSelectAny)
	c.SymbolTable().AddAuxData(hintAux)

	ilt := coff.NewSectionBuilder()
	ilt.SetName(".idata$4")
	ilt.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4 | coff.SecComdat)
	ilt.AppendData(make([]byte, pw), []*coff.RelocatableVar{
		coff.NewRelocatableVar(hintSym, ilt, 0, pw, coff.RVARelocate),
	})
	c.AppendSection(ilt)

	iat := coff.NewSectionBuilder()
	iat.SetName(".idata$5")
	iat.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4 | coff.SecComdat)
	iat.AppendData(make([]byte, pw), []*coff.RelocatableVar{
		coff.NewRelocatableVar(hintSym, iat, 0, pw, coff.RVARelocate),
	})
	c.AppendSection(iat)

	if funcName != "" {
		b.appendThunkText(c, impName, funcName, iat)
	}

	// The __imp_<name> symbol is defined (not external-undefined): its
	// value is the IAT slot this member itself contributes, so any other
	// object's jmp-indirect thunk can bind straight to it.
	c.SymbolTable().AddSymbol(iat, 0, impName, coff.SymExtern, 0)
	c.PushRelocs()
	return c
}

func (b *ImpSectionBuilder) buildOrdinalThunk(impName, funcName string, ordinal int) *coff.CoffBuilder {
	c := b.newObject()
	pw := b.arch.PointerWidth()
	flagBit := b.arch.OrdinalFlagBit()

	var ordinalVal uint64 = uint64(1) << flagBit
	ordinalVal |= uint64(ordinal)

	ilt := coff.NewSectionBuilder()
	ilt.SetName(".idata$4")
	ilt.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4 | coff.SecComdat)
	ilt.AppendData(ordinalPointer(pw, ordinalVal), nil)
	c.AppendSection(ilt)

	iat := coff.NewSectionBuilder()
	iat.SetName(".idata$5")
	iat.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4 | coff.SecComdat)
	iat.AppendData(ordinalPointer(pw, ordinalVal), nil)
	c.AppendSection(iat)

	if funcName != "" {
		b.appendThunkText(c, impName, funcName, iat)
	}

	c.SymbolTable().AddSymbol(iat, 0, impName, coff.SymExtern, 0)
	c.PushRelocs()
	return c
}

func (b *ImpSectionBuilder) appendThunkText(c *coff.CoffBuilder, impName, funcName string, iat *coff.SectionBuilder) {
	text := coff.NewSectionBuilder()
	text.SetName(".text")
	text.SetCharacteristics(coff.SecRead | coff.SecExec | coff.SecCode | coff.SecComdat)
	code, relocOffset, relocType := b.arch.ThunkBytes()
	text.AppendData(code, []*coff.RelocatableVar{
		coff.NewRelocatableVar(impName, text, relocOffset, 4, relocType),
	})
	c.AppendSection(text)
	c.SymbolTable().AddSymbol(text, 0, funcName, coff.SymFunction, 0)
}

// BuildNullThunk builds the terminating .idata$4/.idata$5 zero-pointer
// member that ends the import address table for one DLL.
func (b *ImpSectionBuilder) BuildNullThunk() *coff.CoffBuilder {
	c := b.newObject()
	pw := b.arch.PointerWidth()

	ilt := coff.NewSectionBuilder()
	ilt.SetName(".idata$4")
	ilt.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	ilt.AppendData(make([]byte, pw), nil)
	c.AppendSection(ilt)

	iat := coff.NewSectionBuilder()
	iat.SetName(".idata$5")
	iat.SetCharacteristics(coff.SecRead | coff.SecWrite | coff.SecAlign4)
	iat.AppendData(make([]byte, pw), nil)
	c.AppendSection(iat)

	c.PushRelocs()
	return c
}

func ordinalPointer(width int, value uint64) []byte {
	out := make([]byte, width)
	if width == 8 {
		binary.LittleEndian.PutUint64(out, value)
	} else {
		binary.LittleEndian.PutUint32(out, uint32(value))
	}
	return out
}

func evenPadded(b []byte) []byte {
	if len(b)%2 == 1 {
		return append(b, 0)
	}
	return b
}

// Symbol-naming convention shared by every member this package builds for
// one import descriptor; see BuildImportDescriptor's doc comment.
const (
	iltHeadSymbol              = "__head_ilt"
	iatHeadSymbol              = "__head_iat"
	nameSymbol                 = "__dll_name"
	nullImportDescriptorSymbol = "__NULL_IMPORT_DESCRIPTOR"
)

func importDescriptorSymbol(dllName string) string {
	return "__IMPORT_DESCRIPTOR_" + dllName
}
