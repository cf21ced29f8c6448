package implib

import (
	"bytes"
	"testing"
)

func TestBuildImportDescriptorHasThreeRelocations(t *testing.T) {
	b := NewImpSectionBuilder(X86{})
	c := b.BuildImportDescriptor("KERNEL32.dll")

	names := c.SymbolTable().PublicSymbolNames()
	if len(names) != 1 || names[0] != "__IMPORT_DESCRIPTOR_KERNEL32.dll" {
		t.Errorf("public symbols = %v, want [__IMPORT_DESCRIPTOR_KERNEL32.dll]", names)
	}

	raw := c.RawData()
	if len(raw) == 0 {
		t.Fatal("RawData() returned empty object")
	}
	// .idata$2 is the first section: its header follows the 20-byte file
	// header, and NumberOfRelocations sits at offset 32 within it.
	if n := int(raw[20+32]) | int(raw[20+33])<<8; n != 3 {
		t.Errorf(".idata$2 NumberOfRelocations = %d, want 3", n)
	}
}

func TestBuildNullDescriptorIsTwentyZeroBytesWithOneSymbol(t *testing.T) {
	b := NewImpSectionBuilder(X64{})
	c := b.BuildNullDescriptor()

	names := c.SymbolTable().PublicSymbolNames()
	if len(names) != 1 || names[0] != nullImportDescriptorSymbol {
		t.Errorf("public symbols = %v, want [%s]", names, nullImportDescriptorSymbol)
	}

	// One section: SizeOfRawData is at offset 16 of its header, and its raw
	// data starts right after the file header and the one section header.
	raw := c.RawData()
	size := int(raw[20+16]) | int(raw[20+17])<<8 | int(raw[20+18])<<16 | int(raw[20+19])<<24
	if size != 20 {
		t.Fatalf(".idata$3 SizeOfRawData = %d, want 20", size)
	}
	for i, v := range raw[60:80] {
		if v != 0 {
			t.Errorf(".idata$3 byte %d = %d, want 0", i, v)
		}
	}
}

func TestBuildImportByNameThunkDefinesImpSymbol(t *testing.T) {
	b := NewImpSectionBuilder(X86{})
	c := b.BuildImportByNameThunk("__imp_MyFunc", "MyFunc", "MyFunc")

	names := c.SymbolTable().PublicSymbolNames()
	found := false
	for _, n := range names {
		if n == "__imp_MyFunc" {
			found = true
		}
	}
	if !found {
		t.Errorf("public symbols = %v, want to contain __imp_MyFunc", names)
	}
	// Two public symbols: __imp_MyFunc (on the IAT slot) and MyFunc (the
	// jmp-indirect stub).
	if len(names) != 2 {
		t.Errorf("public symbol count = %d, want 2 (__imp_MyFunc, MyFunc)", len(names))
	}
}

func TestBuildImportThunkEncodesHintInNameEntry(t *testing.T) {
	b := NewImpSectionBuilder(X86{})
	c := b.BuildImportThunk("__imp_MyFunc", "MyFunc", "MyFunc", 7)

	names := c.SymbolTable().PublicSymbolNames()
	found := false
	for _, n := range names {
		if n == "__imp_MyFunc" {
			found = true
		}
	}
	if !found {
		t.Errorf("public symbols = %v, want to contain __imp_MyFunc", names)
	}

	hinted := b.BuildImportThunk("__imp_MyFunc", "MyFunc", "MyFunc", 7)
	unhinted := b.BuildImportByNameThunk("__imp_MyFunc", "MyFunc", "MyFunc")
	if bytes.Equal(hinted.RawData(), unhinted.RawData()) {
		t.Error("BuildImportThunk with a non-zero hint produced the same bytes as a zero-hint by-name thunk")
	}
}

func TestBuildImportByOrdinalThunkSetsOrdinalFlagBit(t *testing.T) {
	b := NewImpSectionBuilder(X86{})
	c := b.BuildImportByOrdinalThunk("__imp_MyFunc", "", 42)

	// No .text stub and no hint/name entry: only __imp_MyFunc is public.
	names := c.SymbolTable().PublicSymbolNames()
	if len(names) != 1 || names[0] != "__imp_MyFunc" {
		t.Errorf("public symbols = %v, want [__imp_MyFunc]", names)
	}

	// Two sections (.idata$4, .idata$5), so the .idata$4 pointer slot starts
	// right after the file header and the two section headers.
	raw := c.RawData()[20+2*40 : 20+2*40+4]
	if raw[3]&0x80 == 0 {
		t.Error("ordinal pointer does not have the high bit set")
	}
	if raw[0] != 42 || raw[1] != 0 || raw[2] != 0 {
		t.Errorf("ordinal pointer low bits = % x, want ordinal 42", raw[:3])
	}
}

func TestBuildNullThunkHasNoPublicSymbols(t *testing.T) {
	b := NewImpSectionBuilder(X64{})
	c := b.BuildNullThunk()
	if got := c.SymbolTable().PublicSymbolNames(); len(got) != 0 {
		t.Errorf("public symbols = %v, want none", got)
	}
}

func TestOrdinalPointerWidths(t *testing.T) {
	p4 := ordinalPointer(4, 0x12345678)
	if len(p4) != 4 {
		t.Fatalf("width 4 produced %d bytes", len(p4))
	}
	p8 := ordinalPointer(8, 0x1234567890ABCDEF)
	if len(p8) != 8 {
		t.Fatalf("width 8 produced %d bytes", len(p8))
	}
}

func TestEvenPaddedAddsOneByteForOddLength(t *testing.T) {
	if got := evenPadded([]byte{1, 2, 3}); len(got) != 4 {
		t.Errorf("evenPadded(3 bytes) length = %d, want 4", len(got))
	}
	if got := evenPadded([]byte{1, 2}); len(got) != 2 {
		t.Errorf("evenPadded(2 bytes) length = %d, want 2 (unchanged)", len(got))
	}
}
