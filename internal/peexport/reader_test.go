package peexport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildSyntheticPE32 assembles a minimal, hand-laid-out PE32 image with one
// ".rdata" section holding an export directory: one plain export ("Alpha"),
// one forwarder export ("Beta" -> "OTHER.Beta"), and one NONAME (ordinal-only)
// export with no name-table entry at all.
func buildSyntheticPE32() []byte {
	const (
		peOffset           = 128
		sizeOfOptionalHdr  = 104
		sectionVA          = 0x2000
		sectionDataOffset  = 256 + 40 // sectionTableOffset + one 40-byte section header
		sectionLength      = 86
		exportDirRVA       = sectionVA
		addrOfFuncsRVA     = sectionVA + 40
		addrOfNamesRVA     = sectionVA + 52
		addrOfOrdinalsRVA  = sectionVA + 60
		alphaNameRVA       = sectionVA + 64
		betaNameRVA        = sectionVA + 70
		forwarderStringRVA = sectionVA + 75
		alphaRealRVA       = 0x401000
		nonameRealRVA      = 0x401010
	)
	total := sectionDataOffset + sectionLength
	buf := make([]byte, total)

	copy(buf[0:2], "MZ")
	binary.LittleEndian.PutUint32(buf[0x3C:0x40], peOffset)

	copy(buf[peOffset:peOffset+4], []byte{'P', 'E', 0, 0})
	coffOff := peOffset + 4
	binary.LittleEndian.PutUint16(buf[coffOff:coffOff+2], 0x14c)
	binary.LittleEndian.PutUint16(buf[coffOff+2:coffOff+4], 1) // NumberOfSections
	binary.LittleEndian.PutUint16(buf[coffOff+16:coffOff+18], sizeOfOptionalHdr)

	optOff := coffOff + 20
	binary.LittleEndian.PutUint16(buf[optOff:optOff+2], peOptMagic32)
	binary.LittleEndian.PutUint32(buf[optOff+92:optOff+96], 1) // NumberOfRvaAndSizes
	binary.LittleEndian.PutUint32(buf[optOff+96:optOff+100], exportDirRVA)
	binary.LittleEndian.PutUint32(buf[optOff+100:optOff+104], sectionLength)

	sectionTableOffset := optOff + sizeOfOptionalHdr
	copy(buf[sectionTableOffset:sectionTableOffset+8], ".rdata\x00\x00")
	binary.LittleEndian.PutUint32(buf[sectionTableOffset+8:sectionTableOffset+12], sectionLength)
	binary.LittleEndian.PutUint32(buf[sectionTableOffset+12:sectionTableOffset+16], sectionVA)
	binary.LittleEndian.PutUint32(buf[sectionTableOffset+16:sectionTableOffset+20], sectionLength)
	binary.LittleEndian.PutUint32(buf[sectionTableOffset+20:sectionTableOffset+24], sectionDataOffset)

	d := sectionDataOffset
	binary.LittleEndian.PutUint32(buf[d+16:d+20], 1)                 // Base (ordinal base)
	binary.LittleEndian.PutUint32(buf[d+20:d+24], 3)                 // NumberOfFunctions
	binary.LittleEndian.PutUint32(buf[d+24:d+28], 2)                 // NumberOfNames
	binary.LittleEndian.PutUint32(buf[d+28:d+32], addrOfFuncsRVA)    // AddressOfFunctions
	binary.LittleEndian.PutUint32(buf[d+32:d+36], addrOfNamesRVA)    // AddressOfNames
	binary.LittleEndian.PutUint32(buf[d+36:d+40], addrOfOrdinalsRVA) // AddressOfNameOrdinals

	funcs := d + 40
	binary.LittleEndian.PutUint32(buf[funcs:funcs+4], alphaRealRVA)
	binary.LittleEndian.PutUint32(buf[funcs+4:funcs+8], forwarderStringRVA)
	binary.LittleEndian.PutUint32(buf[funcs+8:funcs+12], nonameRealRVA)

	names := d + 52
	binary.LittleEndian.PutUint32(buf[names:names+4], alphaNameRVA)
	binary.LittleEndian.PutUint32(buf[names+4:names+8], betaNameRVA)

	ords := d + 60
	binary.LittleEndian.PutUint16(buf[ords:ords+2], 0)
	binary.LittleEndian.PutUint16(buf[ords+2:ords+4], 1)

	copy(buf[d+64:d+70], "Alpha\x00")
	copy(buf[d+70:d+75], "Beta\x00")
	copy(buf[d+75:d+86], "OTHER.Beta\x00")

	return buf
}

func TestExportsResolvesNamedForwardedAndNonameExports(t *testing.T) {
	r, err := Open(bytes.NewReader(buildSyntheticPE32()))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	exports, err := r.Exports()
	if err != nil {
		t.Fatalf("Exports() = %v", err)
	}
	if len(exports) != 3 {
		t.Fatalf("len(exports) = %d, want 3: %+v", len(exports), exports)
	}

	byName := make(map[string]Export)
	var nonamed []Export
	for _, e := range exports {
		if e.Name == "" {
			nonamed = append(nonamed, e)
			continue
		}
		byName[e.Name] = e
	}

	alpha, ok := byName["Alpha"]
	if !ok {
		t.Fatal("Alpha export missing")
	}
	if alpha.Ordinal != 1 || alpha.RVA != 0x401000 || alpha.Forward != "" {
		t.Errorf("Alpha = %+v, want Ordinal=1 RVA=0x401000 no forward", alpha)
	}

	beta, ok := byName["Beta"]
	if !ok {
		t.Fatal("Beta export missing")
	}
	if beta.Ordinal != 2 || beta.Forward != "OTHER.Beta" {
		t.Errorf("Beta = %+v, want Ordinal=2 Forward=OTHER.Beta", beta)
	}

	if len(nonamed) != 1 {
		t.Fatalf("NONAME exports = %d, want 1", len(nonamed))
	}
	if nonamed[0].Ordinal != 3 || nonamed[0].RVA != 0x401010 {
		t.Errorf("NONAME export = %+v, want Ordinal=3 RVA=0x401010", nonamed[0])
	}
}

func TestExportsIsCachedAfterFirstCall(t *testing.T) {
	r, err := Open(bytes.NewReader(buildSyntheticPE32()))
	if err != nil {
		t.Fatal(err)
	}
	first, err := r.Exports()
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Exports()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Errorf("cached Exports() call returned a different count: %d vs %d", len(first), len(second))
	}
}

func TestOpenRejectsBadDOSMagic(t *testing.T) {
	buf := make([]byte, 64)
	if _, err := Open(bytes.NewReader(buf)); err == nil {
		t.Fatal("Open() on all-zero data succeeded, want an error")
	}
}
