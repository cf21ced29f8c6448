package ierrors

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(BadName, "AddObject", nil)
	if !Is(err, BadName) {
		t.Error("Is(err, BadName) = false, want true")
	}
	if Is(err, Io) {
		t.Error("Is(err, Io) = true, want false")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Io, "WriteFile", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true")
	}
}

func TestErrorStringWithAndWithoutCause(t *testing.T) {
	bare := New(NoExports, "Exports", nil)
	if bare.Error() == "" {
		t.Error("Error() returned empty string")
	}
	withCause := New(NoExports, "Exports", errors.New("zero-sized directory"))
	if withCause.Error() == bare.Error() {
		t.Error("Error() with and without cause produced identical strings")
	}
}
