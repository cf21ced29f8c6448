// Package peexport reads the export directory out of a PE image (DLL or
// EXE) and turns it into a plain list of exported symbols, resolving
// forwarders and handling both the PE32 and PE32+ optional header formats.
//
// Adapted from _examples/xyproto-vibe67/pe_reader.go's PEReader/GetExports,
// generalised to accept either optional-header format (the teacher rejects
// PE32 outright) and extended with forwarder detection and bounded name
// reads — see Reader.readStringAtRVA.
package peexport

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/xyproto/implibgen/internal/ierrors"
)

// maxExportNameLength bounds readStringAtRVA: the 78-character export-name
// cap, 77 characters plus the terminating nul, guards against a corrupt or
// adversarial export table running the reader off the end of the file.
const maxExportNameLength = 77

const (
	dosMagic      = 0x5A4D
	peSignature   = 0x00004550
	peOptMagic32  = 0x10B
	peOptMagic64  = 0x20B
	peOffsetField = 0x3C
)

// Export is one resolved export directory entry. Forward is non-empty when
// the entry is a forwarder ("DLLName.FuncName" or "DLLName.#Ordinal")
// rather than a real code address, in which case RVA is meaningless.
type Export struct {
	Name    string
	Ordinal uint16
	RVA     uint32
	Forward string
}

type sectionHeader struct {
	name             [8]byte
	virtualSize      uint32
	virtualAddress   uint32
	sizeOfRawData    uint32
	pointerToRawData uint32
}

// Reader parses one PE image's export directory. A Reader is built once per
// image via Open and is not safe for concurrent use.
type Reader struct {
	r                  io.ReaderAt
	peOffset           int64
	is64               bool
	dataDirs           []dataDirectory
	sections           []sectionHeader
	sectionTableOffset int64
	numSections        uint16
	exportRVA          uint32
	exportSize         uint32
	exports            []Export
}

type dataDirectory struct {
	virtualAddress uint32
	size           uint32
}

// Open parses the DOS header, PE/COFF header, optional header and section
// table of the image backing r. It does not yet read the export directory;
// call Exports for that.
func Open(r io.ReaderAt) (*Reader, error) {
	pr := &Reader{r: r}
	if err := pr.readDOSHeader(); err != nil {
		return nil, err
	}
	if err := pr.readPEHeaders(); err != nil {
		return nil, err
	}
	if err := pr.readSections(); err != nil {
		return nil, err
	}
	return pr, nil
}

func (pr *Reader) readDOSHeader() error {
	var magic [2]byte
	if _, err := pr.r.ReadAt(magic[:], 0); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readDOSHeader", err)
	}
	if binary.LittleEndian.Uint16(magic[:]) != dosMagic {
		return ierrors.New(ierrors.PeParse, "Reader.readDOSHeader", nil)
	}
	var peOff [4]byte
	if _, err := pr.r.ReadAt(peOff[:], peOffsetField); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readDOSHeader", err)
	}
	pr.peOffset = int64(binary.LittleEndian.Uint32(peOff[:]))
	return nil
}

// coffHeaderSize is the 20-byte IMAGE_FILE_HEADER that follows the 4-byte
// PE signature.
const coffHeaderSize = 20

func (pr *Reader) readPEHeaders() error {
	var sig [4]byte
	if _, err := pr.r.ReadAt(sig[:], pr.peOffset); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readPEHeaders", err)
	}
	if binary.LittleEndian.Uint32(sig[:]) != peSignature {
		return ierrors.New(ierrors.PeParse, "Reader.readPEHeaders", nil)
	}

	var coffHdr [coffHeaderSize]byte
	if _, err := pr.r.ReadAt(coffHdr[:], pr.peOffset+4); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readPEHeaders", err)
	}
	numSections := binary.LittleEndian.Uint16(coffHdr[2:4])
	sizeOfOptHdr := binary.LittleEndian.Uint16(coffHdr[16:18])
	if sizeOfOptHdr == 0 {
		return ierrors.New(ierrors.PeParse, "Reader.readPEHeaders", nil)
	}

	optOff := pr.peOffset + 4 + coffHeaderSize
	var magic [2]byte
	if _, err := pr.r.ReadAt(magic[:], optOff); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readPEHeaders", err)
	}
	switch binary.LittleEndian.Uint16(magic[:]) {
	case peOptMagic64:
		pr.is64 = true
	case peOptMagic32:
		pr.is64 = false
	default:
		return ierrors.New(ierrors.PeParse, "Reader.readPEHeaders", nil)
	}

	// NumberOfRvaAndSizes sits at a fixed, format-dependent offset from
	// optOff: 92 for PE32 (after BaseOfData, which PE32+ omits), 108 for
	// PE32+.
	var numRvaOff int64
	var dataDirOff int64
	if pr.is64 {
		numRvaOff = optOff + 108
		dataDirOff = optOff + 112
	} else {
		numRvaOff = optOff + 92
		dataDirOff = optOff + 96
	}
	var numRvaBuf [4]byte
	if _, err := pr.r.ReadAt(numRvaBuf[:], numRvaOff); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readPEHeaders", err)
	}
	numRva := binary.LittleEndian.Uint32(numRvaBuf[:])
	if numRva > 16 {
		numRva = 16
	}

	pr.dataDirs = make([]dataDirectory, numRva)
	dirBuf := make([]byte, numRva*8)
	if _, err := pr.r.ReadAt(dirBuf, dataDirOff); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readPEHeaders", err)
	}
	for i := range pr.dataDirs {
		pr.dataDirs[i].virtualAddress = binary.LittleEndian.Uint32(dirBuf[i*8 : i*8+4])
		pr.dataDirs[i].size = binary.LittleEndian.Uint32(dirBuf[i*8+4 : i*8+8])
	}

	pr.sectionTableOffset = optOff + int64(sizeOfOptHdr)
	pr.numSections = numSections
	return nil
}

func (pr *Reader) readSections() error {
	const sectionHeaderSize = 40
	pr.sections = make([]sectionHeader, pr.numSections)
	buf := make([]byte, int(pr.numSections)*sectionHeaderSize)
	if _, err := pr.r.ReadAt(buf, pr.sectionTableOffset); err != nil {
		return ierrors.Wrap(ierrors.PeParse, "Reader.readSections", err)
	}
	for i := range pr.sections {
		off := i * sectionHeaderSize
		copy(pr.sections[i].name[:], buf[off:off+8])
		pr.sections[i].virtualSize = binary.LittleEndian.Uint32(buf[off+8 : off+12])
		pr.sections[i].virtualAddress = binary.LittleEndian.Uint32(buf[off+12 : off+16])
		pr.sections[i].sizeOfRawData = binary.LittleEndian.Uint32(buf[off+16 : off+20])
		pr.sections[i].pointerToRawData = binary.LittleEndian.Uint32(buf[off+20 : off+24])
	}
	return nil
}

// Exports parses the export directory table and returns every named export
// followed by every NONAME (ordinal-only) export, resolving forwarders. The
// result is cached after the first call.
func (pr *Reader) Exports() ([]Export, error) {
	if pr.exports != nil {
		return pr.exports, nil
	}
	if len(pr.dataDirs) == 0 || pr.dataDirs[0].size == 0 {
		return nil, ierrors.New(ierrors.NoExports, "Reader.Exports", nil)
	}
	dir := pr.dataDirs[0]
	pr.exportRVA, pr.exportSize = dir.virtualAddress, dir.size

	base, err := pr.rvaToFileOffset(dir.virtualAddress)
	if err != nil {
		return nil, err
	}

	var hdr [40]byte
	if _, err := pr.r.ReadAt(hdr[:], base); err != nil {
		return nil, ierrors.Wrap(ierrors.PeParse, "Reader.Exports", err)
	}
	numFuncs := binary.LittleEndian.Uint32(hdr[20:24])
	numNames := binary.LittleEndian.Uint32(hdr[24:28])
	addrOfFuncs := binary.LittleEndian.Uint32(hdr[28:32])
	addrOfNames := binary.LittleEndian.Uint32(hdr[32:36])
	addrOfOrdinals := binary.LittleEndian.Uint32(hdr[36:40])
	ordinalBase := binary.LittleEndian.Uint32(hdr[16:20])

	funcRVAs, err := pr.readUint32Array(addrOfFuncs, numFuncs)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.PeParse, "Reader.Exports", err)
	}
	nameRVAs, err := pr.readUint32Array(addrOfNames, numNames)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.PeParse, "Reader.Exports", err)
	}
	ordinals, err := pr.readUint16Array(addrOfOrdinals, numNames)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.PeParse, "Reader.Exports", err)
	}

	named := make(map[uint16]bool, numNames)
	exports := make([]Export, 0, numFuncs)
	for i := uint32(0); i < numNames; i++ {
		name, err := pr.readStringAtRVA(nameRVAs[i])
		if err != nil {
			continue
		}
		ord := ordinals[i]
		if uint32(ord) >= numFuncs {
			continue
		}
		named[ord] = true
		exports = append(exports, pr.makeExport(name, ord, ordinalBase, funcRVAs))
	}

	// Ordinals with no corresponding name-table entry are NONAME exports:
	// bound only by ordinal, never by name.
	for ord := uint32(0); ord < numFuncs; ord++ {
		if named[uint16(ord)] || funcRVAs[ord] == 0 {
			continue
		}
		exports = append(exports, pr.makeExport("", uint16(ord), ordinalBase, funcRVAs))
	}

	pr.exports = exports
	return exports, nil
}

func (pr *Reader) makeExport(name string, ord uint16, ordinalBase uint32, funcRVAs []uint32) Export {
	rva := funcRVAs[ord]
	e := Export{Name: name, Ordinal: ord + uint16(ordinalBase)}
	if rva >= pr.exportRVA && rva < pr.exportRVA+pr.exportSize {
		if forward, err := pr.readStringAtRVA(rva); err == nil {
			e.Forward = forward
		}
	} else {
		e.RVA = rva
	}
	return e
}

func (pr *Reader) readUint32Array(rva, count uint32) ([]uint32, error) {
	off, err := pr.rvaToFileOffset(rva)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, count*4)
	if _, err := pr.r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return out, nil
}

func (pr *Reader) readUint16Array(rva, count uint32) ([]uint16, error) {
	off, err := pr.rvaToFileOffset(rva)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, count*2)
	if _, err := pr.r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	return out, nil
}

// readStringAtRVA reads a null-terminated string at rva, one byte at a
// time, stopping at maxExportNameLength bytes even if no nul was found —
// the bounded-read guard spec.md section 9 calls for.
func (pr *Reader) readStringAtRVA(rva uint32) (string, error) {
	off, err := pr.rvaToFileOffset(rva)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var b [1]byte
	for i := 0; i < maxExportNameLength; i++ {
		if _, err := pr.r.ReadAt(b[:], off+int64(i)); err != nil {
			return "", ierrors.Wrap(ierrors.PeParse, "Reader.readStringAtRVA", err)
		}
		if b[0] == 0 {
			break
		}
		sb.WriteByte(b[0])
	}
	return sb.String(), nil
}

func (pr *Reader) rvaToSection(rva uint32) *sectionHeader {
	for i := range pr.sections {
		s := &pr.sections[i]
		if rva >= s.virtualAddress && rva < s.virtualAddress+s.virtualSize {
			return s
		}
	}
	return nil
}

func (pr *Reader) rvaToFileOffset(rva uint32) (int64, error) {
	s := pr.rvaToSection(rva)
	if s == nil {
		return 0, ierrors.New(ierrors.PeParse, "Reader.rvaToFileOffset", nil)
	}
	return int64(rva-s.virtualAddress) + int64(s.pointerToRawData), nil
}
