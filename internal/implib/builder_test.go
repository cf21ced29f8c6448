package implib

import "testing"

func TestNewImportLibraryBuilderEmitsDescriptorAndNullDescriptor(t *testing.T) {
	b, err := NewImportLibraryBuilder("KERNEL32.dll", X86{})
	if err != nil {
		t.Fatalf("NewImportLibraryBuilder() = %v", err)
	}
	if b.next != 2 {
		t.Errorf("member count after construction = %d, want 2 (descriptor, null descriptor)", b.next)
	}
}

func TestAddImportFunctionsIncrementMemberCount(t *testing.T) {
	b, err := NewImportLibraryBuilder("USER32.dll", X64{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddImportFunctionByName("__imp_MessageBoxW", "MessageBoxW", "MessageBoxW"); err != nil {
		t.Fatalf("AddImportFunctionByName() = %v", err)
	}
	if err := b.AddImportFunctionByOrdinal("__imp_Ordinal5", "", 5); err != nil {
		t.Fatalf("AddImportFunctionByOrdinal() = %v", err)
	}
	if b.next != 4 {
		t.Errorf("member count = %d, want 4 (descriptor, null descriptor, 2 thunks)", b.next)
	}
}

func TestAddImportFunctionByNameWithHintIncrementsMemberCount(t *testing.T) {
	b, err := NewImportLibraryBuilder("WININET.dll", X86{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddImportFunctionByNameWithHint("__imp_InternetOpenA", "InternetOpenA", "InternetOpenA", 12); err != nil {
		t.Fatalf("AddImportFunctionByNameWithHint() = %v", err)
	}
	if b.next != 3 {
		t.Errorf("member count = %d, want 3 (descriptor, null descriptor, hinted thunk)", b.next)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("Build() = %v", err)
	}
	if b.DataLength() == 0 {
		t.Fatal("DataLength() = 0 after Build")
	}
}

func TestBuildRejectsSecondCall(t *testing.T) {
	b, err := NewImportLibraryBuilder("ADVAPI32.dll", X86{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("first Build() = %v", err)
	}
	if err := b.Build(); err == nil {
		t.Fatal("second Build() succeeded, want an error")
	}
}

func TestBuildProducesNonEmptyArchive(t *testing.T) {
	b, err := NewImportLibraryBuilder("WS2_32.dll", X86{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddImportFunctionByName("__imp_send", "send", "send"); err != nil {
		t.Fatal(err)
	}
	if err := b.Build(); err != nil {
		t.Fatalf("Build() = %v", err)
	}
	if b.DataLength() == 0 {
		t.Fatal("DataLength() = 0 after Build")
	}
	if len(b.RawData()) != b.DataLength() {
		t.Errorf("len(RawData()) = %d, DataLength() = %d", len(b.RawData()), b.DataLength())
	}
}

func TestMemberBaseNameReservesSuffixRoom(t *testing.T) {
	longName := "THIS_DLL_NAME_IS_QUITE_LONG_INDEED.dll"
	base := memberBaseName(longName)
	if len(base) > 15-3 {
		t.Errorf("memberBaseName(%q) = %q, len %d exceeds reserved budget", longName, base, len(base))
	}
}
