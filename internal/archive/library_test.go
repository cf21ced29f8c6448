package archive

import (
	"bytes"
	"testing"

	"github.com/blakesmith/ar"

	"github.com/xyproto/implibgen/internal/coff"
)

func buildTestObject(publicName string) *coff.CoffBuilder {
	c := coff.NewCoffBuilder(coff.MachineX86)
	sec := coff.NewSectionBuilder()
	sec.SetName(".text")
	sec.SetCharacteristics(coff.SecRead | coff.SecExec | coff.SecCode)
	c.AppendSection(sec)
	sec.AppendData([]byte{0x90, 0x90, 0x90, 0x90}, nil)
	c.SymbolTable().AddSymbol(sec, 0, publicName, coff.SymFunction, 0)
	c.PushRelocs()
	return c
}

func TestAddObjectRejectsLongNames(t *testing.T) {
	lb := NewLibraryBuilder()
	err := lb.AddObject("this_name_is_definitely_too_long", buildTestObject("f"))
	if err == nil {
		t.Fatal("AddObject with a >15 byte name succeeded, want an error")
	}
}

func TestFillOffsetsOrdersSymbolsByName(t *testing.T) {
	lb := NewLibraryBuilder()
	if err := lb.AddObject("b.obj", buildTestObject("zzz")); err != nil {
		t.Fatal(err)
	}
	if err := lb.AddObject("a.obj", buildTestObject("aaa")); err != nil {
		t.Fatal(err)
	}
	lb.FillOffsets()

	// The second linker member's trailing names blob is sorted
	// lexicographically regardless of insertion order.
	if !bytes.Contains(lb.secondLinker, []byte("aaa\x00zzz\x00")) {
		t.Errorf("second linker member names blob not sorted: %q", lb.secondLinker)
	}
}

func TestRawDataRoundTripsThroughGenericArReader(t *testing.T) {
	lb := NewLibraryBuilder()
	if err := lb.AddObject("one.obj", buildTestObject("Sym1")); err != nil {
		t.Fatal(err)
	}
	if err := lb.AddObject("two.obj", buildTestObject("Sym2")); err != nil {
		t.Fatal(err)
	}
	lb.FillOffsets()

	data := lb.RawData()
	r := ar.NewReader(bytes.NewReader(data))

	var names []string
	for {
		hdr, err := r.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}

	if len(names) != 5 {
		t.Fatalf("ar.Reader saw %d members, want 5 (2 linker + longnames + 2 objects): %v", len(names), names)
	}
	if names[0] != firstLinkerName || names[1] != secondLinkerName {
		t.Errorf("first two members = %v, want [%q %q]", names[:2], firstLinkerName, secondLinkerName)
	}
	if names[3] != "one.obj/" || names[4] != "two.obj/" {
		t.Errorf("object members = %v, want [one.obj/ two.obj/]", names[3:])
	}
}

func TestEncodeMemberTerminatesObjectNameWithSlash(t *testing.T) {
	out := encodeMember("kernel32_2", []byte{0})
	if got := string(out[0:16]); got != "kernel32_2/     " {
		t.Errorf("name field = %q, want %q", got, "kernel32_2/     ")
	}
}

func TestEncodeMemberLeavesDirectoryNamesUnterminated(t *testing.T) {
	for _, name := range []string{firstLinkerName, longNamesName} {
		out := encodeMember(name, nil)
		got := string(out[0:16])
		want := name + "               "[:16-len(name)]
		if got != want {
			t.Errorf("encodeMember(%q) name field = %q, want %q", name, got, want)
		}
	}
}

func TestEncodeMemberPadsOddBodyLength(t *testing.T) {
	out := encodeMember("x", []byte{1, 2, 3})
	if len(out) != headerSize+4 {
		t.Fatalf("encodeMember body length = %d, want %d (padded to even)", len(out), headerSize+4)
	}
	if out[len(out)-1] != padByte {
		t.Errorf("last byte = %d, want pad byte %d", out[len(out)-1], padByte)
	}
}
