package coff

import (
	"encoding/binary"
	"testing"
)

func TestCoffBuilderRawDataFileHeader(t *testing.T) {
	c := NewCoffBuilder(MachineX86)
	sec := NewSectionBuilder()
	sec.SetName(".text")
	sec.SetCharacteristics(SecRead | SecExec | SecCode)
	c.AppendSection(sec)
	sec.AppendData([]byte{0x90, 0x90}, nil)

	if err := c.PushRelocs(); err != nil {
		t.Fatalf("PushRelocs() = %v", err)
	}

	raw := c.RawData()
	if len(raw) != c.DataLength() {
		t.Fatalf("RawData length = %d, DataLength() = %d", len(raw), c.DataLength())
	}

	machine := binary.LittleEndian.Uint16(raw[0:2])
	if Machine(machine) != MachineX86 {
		t.Errorf("file header Machine = 0x%x, want 0x%x", machine, MachineX86)
	}
	numSections := binary.LittleEndian.Uint16(raw[2:4])
	if numSections != 1 {
		t.Errorf("file header NumberOfSections = %d, want 1", numSections)
	}
}

func TestCoffBuilderPushRelocsOnlyOnce(t *testing.T) {
	c := NewCoffBuilder(MachineX64)
	if err := c.PushRelocs(); err != nil {
		t.Fatalf("first PushRelocs() = %v", err)
	}
	if err := c.PushRelocs(); err == nil {
		t.Fatal("second PushRelocs() succeeded, want BadInput error")
	}
}

func TestCoffBuilderAppendSectionAssignsOneBasedIndex(t *testing.T) {
	c := NewCoffBuilder(MachineX86)
	s1 := NewSectionBuilder()
	s2 := NewSectionBuilder()

	if idx := c.AppendSection(s1); idx != 1 {
		t.Errorf("first AppendSection index = %d, want 1", idx)
	}
	if idx := c.AppendSection(s2); idx != 2 {
		t.Errorf("second AppendSection index = %d, want 2", idx)
	}
	if s1.SectionIndex() != 1 || s2.SectionIndex() != 2 {
		t.Errorf("SectionIndex() not updated: %d, %d", s1.SectionIndex(), s2.SectionIndex())
	}
}
