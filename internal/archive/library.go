// Package archive implements the classical Unix/Microsoft archive ("!<arch>\n")
// format used for static libraries and import libraries: member framing,
// the first/second linker-member symbol directories, and the two-pass
// offset fixup that makes those directories point at real file offsets.
//
// The member envelope (60-byte header, even-byte body padding) is the same
// shape github.com/blakesmith/ar models for ordinary archives; this package
// still encodes it by hand because the content of the first and second
// linker members — the actual subject of this package — is a bespoke
// binary layout the generic library has no opinion on. See
// internal/archive/library_test.go, which round-trips a produced archive
// through ar.Reader to check the envelope really is compatible.
package archive

import (
	"encoding/binary"
	"sort"

	"github.com/xyproto/implibgen/internal/coff"
	"github.com/xyproto/implibgen/internal/ierrors"
)

const (
	magic = "!<arch>\n"

	headerSize = 60
	padByte    = '\n'

	// MaxMemberNameLength is the longest member name this builder accepts
	// (the 16th byte of the header's 16-byte name field is reserved for a
	// terminating "/"). The longnames member is always written with an
	// empty body, since every name this package writes fits inline.
	MaxMemberNameLength = 15

	firstLinkerName  = "/"
	secondLinkerName = "/"
	longNamesName    = "//"
)

type objectMember struct {
	name   string
	coff   *coff.CoffBuilder
	body   []byte // cached coff.RawData()
	offset uint32 // absolute file offset of this member's header, set by FillOffsets
}

// LibraryBuilder accumulates COFF object members and produces a single
// static-archive image with first/second linker-member symbol directories.
type LibraryBuilder struct {
	objects []*objectMember

	filled       bool
	firstLinker  []byte
	secondLinker []byte
	longNames    []byte
}

// NewLibraryBuilder returns an empty archive builder.
func NewLibraryBuilder() *LibraryBuilder {
	return &LibraryBuilder{}
}

// AddObject appends one COFF object as an archive member named memberName.
// memberName is limited to MaxMemberNameLength bytes; longer names are
// rejected rather than promoted into a longnames member, matching
// ImpLibFix's documented "14-byte-limited names" (counting the terminating
// "/", spec.md's budget table rounds this to 15). Ownership of coffBuilder
// transfers to the archive.
func (l *LibraryBuilder) AddObject(memberName string, coffBuilder *coff.CoffBuilder) error {
	if len(memberName) > MaxMemberNameLength {
		return ierrors.New(ierrors.BadName, "LibraryBuilder.AddObject", nil)
	}
	l.objects = append(l.objects, &objectMember{name: memberName, coff: coffBuilder})
	return nil
}

// symbolEntry pairs a public symbol name with the index (into the object
// list) of the member that defines it, used to build both linker members.
type symbolEntry struct {
	name        string
	objectIndex int
}

// FillOffsets performs the two-pass layout spec.md section 4.6 describes:
// first it enumerates every object's public symbols, then it computes the
// absolute file offset of every member (the three directory members plus
// every object, in that order) and uses those offsets to populate the
// first and second linker members.
func (l *LibraryBuilder) FillOffsets() {
	var symbols []symbolEntry
	for i, obj := range l.objects {
		obj.body = obj.coff.RawData()
		for _, name := range obj.coff.SymbolTable().PublicSymbolNames() {
			symbols = append(symbols, symbolEntry{name: name, objectIndex: i})
		}
	}

	sorted := make([]symbolEntry, len(symbols))
	copy(sorted, symbols)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	namesBlob := buildNamesBlob(sorted)

	firstBodyLen := 4 + len(sorted)*4 + len(namesBlob)
	secondBodyLen := 4 + len(l.objects)*4 + 4 + len(sorted)*2 + len(namesBlob)
	longNamesBodyLen := 0

	prefix := uint32(len(magic))
	prefix += headerSize + uint32(padLen(firstBodyLen))
	prefix += headerSize + uint32(padLen(secondBodyLen))
	prefix += headerSize + uint32(padLen(longNamesBodyLen))

	offset := prefix
	for _, obj := range l.objects {
		obj.offset = offset
		offset += headerSize + uint32(padLen(len(obj.body)))
	}

	l.firstLinker = buildFirstLinkerMember(sorted, l.objects, namesBlob)
	l.secondLinker = buildSecondLinkerMember(sorted, l.objects, namesBlob)
	l.longNames = nil
	l.filled = true
}

func buildNamesBlob(sorted []symbolEntry) []byte {
	var blob []byte
	for _, s := range sorted {
		blob = append(blob, s.name...)
		blob = append(blob, 0)
	}
	return blob
}

// buildFirstLinkerMember writes: big-endian symbol count, big-endian array
// of member offsets (one per symbol, in sorted-name order), then the
// sorted null-terminated symbol names.
func buildFirstLinkerMember(sorted []symbolEntry, objects []*objectMember, namesBlob []byte) []byte {
	out := make([]byte, 4+len(sorted)*4)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(sorted)))
	for i, s := range sorted {
		off := 4 + i*4
		binary.BigEndian.PutUint32(out[off:off+4], objects[s.objectIndex].offset)
	}
	return append(out, namesBlob...)
}

// buildSecondLinkerMember writes: little-endian member count, little-endian
// array of member offsets (one per object, insertion order), little-endian
// symbol count, little-endian array of 1-based member indices (one per
// symbol, in sorted-name order matching namesBlob), then namesBlob.
func buildSecondLinkerMember(sorted []symbolEntry, objects []*objectMember, namesBlob []byte) []byte {
	head := 4 + len(objects)*4 + 4 + len(sorted)*2
	out := make([]byte, head)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(objects)))
	for i, obj := range objects {
		off := 4 + i*4
		binary.LittleEndian.PutUint32(out[off:off+4], obj.offset)
	}
	symCountOff := 4 + len(objects)*4
	binary.LittleEndian.PutUint32(out[symCountOff:symCountOff+4], uint32(len(sorted)))
	idxBase := symCountOff + 4
	for i, s := range sorted {
		off := idxBase + i*2
		binary.LittleEndian.PutUint16(out[off:off+2], uint16(s.objectIndex+1))
	}
	return append(out, namesBlob...)
}

func padLen(n int) int {
	if n%2 == 1 {
		return n + 1
	}
	return n
}

// DataLength returns the total serialised archive length. FillOffsets must
// be called first.
func (l *LibraryBuilder) DataLength() int {
	total := len(magic)
	total += headerSize + padLen(len(l.firstLinker))
	total += headerSize + padLen(len(l.secondLinker))
	total += headerSize + padLen(len(l.longNames))
	for _, obj := range l.objects {
		total += headerSize + padLen(len(obj.body))
	}
	return total
}

// RawData serialises the archive: magic, the three directory members, then
// every object member in insertion order. FillOffsets must be called first.
func (l *LibraryBuilder) RawData() []byte {
	out := make([]byte, 0, l.DataLength())
	out = append(out, magic...)
	out = append(out, encodeMember(firstLinkerName, l.firstLinker)...)
	out = append(out, encodeMember(secondLinkerName, l.secondLinker)...)
	out = append(out, encodeMember(longNamesName, l.longNames)...)
	for _, obj := range l.objects {
		out = append(out, encodeMember(obj.name, obj.body)...)
	}
	return out
}

// encodeMember writes one 60-byte header followed by body, padded to an
// even length with padByte. Date/UID/GID are set to 0 since this
// generator's outputs are not meant to round-trip through `ar -t`
// timestamp/owner display, only through a linker; Mode is the ordinary
// regular-file value 100644 (octal), the form generic ar readers parse.
func encodeMember(name string, body []byte) []byte {
	var header [headerSize]byte
	for i := range header {
		header[i] = ' '
	}
	fieldName := name
	if name != firstLinkerName && name != longNamesName {
		fieldName = name + "/"
	}
	copy(header[0:16], fieldName)
	copy(header[16:28], "0")
	copy(header[28:34], "0")
	copy(header[34:40], "0")
	copy(header[40:48], "100644")
	copy(header[48:58], itoa(len(body)))
	header[58] = '`'
	header[59] = '\n'

	out := make([]byte, 0, headerSize+padLen(len(body)))
	out = append(out, header[:]...)
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, padByte)
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
