package implib

import (
	"fmt"

	"github.com/xyproto/implibgen/internal/archive"
	"github.com/xyproto/implibgen/internal/coff"
	"github.com/xyproto/implibgen/internal/ierrors"
)

// ImportLibraryBuilder assembles one complete import library for a single
// DLL. Ported from _examples/original_source/LibGenHelper/LibGenHelperImpl.cpp's
// CImportLibraryBuilder<Arch> template: the constructor eagerly emits the
// import descriptor and null-descriptor members, each AddImportFunction*
// call emits exactly one thunk member, and Build appends the null-thunk
// member and fixes up the archive's linker-member directories.
type ImportLibraryBuilder struct {
	dllName string
	section *ImpSectionBuilder
	archive *archive.LibraryBuilder
	built   bool
	next    int
}

// NewImportLibraryBuilder starts a new import library targeting dllName on
// arch. The import descriptor and null descriptor members are produced
// immediately, matching the source constructor.
func NewImportLibraryBuilder(dllName string, arch Arch) (*ImportLibraryBuilder, error) {
	b := &ImportLibraryBuilder{
		dllName: dllName,
		section: NewImpSectionBuilder(arch),
		archive: archive.NewLibraryBuilder(),
	}

	if err := b.addMember(b.section.BuildImportDescriptor(dllName)); err != nil {
		return nil, err
	}
	if err := b.addMember(b.section.BuildNullDescriptor()); err != nil {
		return nil, err
	}
	return b, nil
}

// AddImportFunctionByName adds one thunk importing exportName from the DLL
// by name, exposed under the public symbol pubName (conventionally
// __imp_<name>), with funcName the jmp-indirect stub's own symbol.
func (b *ImportLibraryBuilder) AddImportFunctionByName(pubName, funcName, exportName string) error {
	return b.addMember(b.section.BuildImportByNameThunk(pubName, funcName, exportName))
}

// AddImportFunctionByOrdinal adds one thunk importing the DLL export
// identified only by its ordinal.
func (b *ImportLibraryBuilder) AddImportFunctionByOrdinal(pubName, funcName string, ordinal int) error {
	return b.addMember(b.section.BuildImportByOrdinalThunk(pubName, funcName, ordinal))
}

// AddImportFunctionByNameWithHint adds a by-name thunk carrying ordinal as
// a non-binding hint for the loader's name-table search.
func (b *ImportLibraryBuilder) AddImportFunctionByNameWithHint(pubName, funcName, exportName string, ordinal int) error {
	return b.addMember(b.section.BuildImportThunk(pubName, funcName, exportName, ordinal))
}

// Build appends the terminating null-thunk member and computes the
// archive's linker-member directories. No further AddImportFunction* calls
// are valid afterwards.
func (b *ImportLibraryBuilder) Build() error {
	if b.built {
		return ierrors.New(ierrors.BadInput, "ImportLibraryBuilder.Build", nil)
	}
	if err := b.addMember(b.section.BuildNullThunk()); err != nil {
		return err
	}
	b.archive.FillOffsets()
	b.built = true
	return nil
}

// DataLength returns the serialised import library's byte length. Build
// must be called first.
func (b *ImportLibraryBuilder) DataLength() int { return b.archive.DataLength() }

// RawData serialises the complete import library. Build must be called
// first.
func (b *ImportLibraryBuilder) RawData() []byte { return b.archive.RawData() }

// addMember names each archive member after the DLL plus a running
// sequence number (lib.exe's own import libraries use the DLL's .dll
// member name for every member; a sequence number is appended here so
// AddObject's per-name length check never collides across the handful of
// members one DLL produces).
func (b *ImportLibraryBuilder) addMember(coffBuilder *coff.CoffBuilder) error {
	base := memberBaseName(b.dllName)
	name := fmt.Sprintf("%s_%d", base, b.next)
	if len(name) > archive.MaxMemberNameLength {
		name = name[:archive.MaxMemberNameLength]
	}
	b.next++
	return b.archive.AddObject(name, coffBuilder)
}

// memberBaseName trims dllName to leave room for the "_<n>" suffix
// addMember appends, so the final member name never exceeds
// archive.MaxMemberNameLength.
func memberBaseName(dllName string) string {
	const suffixRoom = 3 // "_" + up to 2 digits before truncation kicks in again
	if len(dllName) > archive.MaxMemberNameLength-suffixRoom {
		return dllName[:archive.MaxMemberNameLength-suffixRoom]
	}
	return dllName
}
