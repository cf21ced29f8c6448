package archive

import (
	"strconv"
	"strings"

	"github.com/xyproto/implibgen/internal/ierrors"
)

// RenameMembers rewrites every object member's 16-byte header name field to
// newName in place, leaving the first linker member, second linker member
// and longnames member untouched. It returns how many members were
// renamed.
//
// Ported from _examples/original_source/ImpLibFix/ImpLibFix.h's
// RenameImpLibObjects: the source silently leaves the symbol map inside the
// second linker member stale (it still maps symbol names to 1-based member
// *indices*, which do not change here — only the header's display name
// does). A linker resolves members through that index, never through the
// header name, so the archive stays valid; see SPEC_FULL.md section 12,
// open question 3.
func RenameMembers(newName string, data []byte) (int, error) {
	if len(newName) > MaxMemberNameLength {
		return 0, ierrors.New(ierrors.BadName, "RenameMembers", nil)
	}
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return 0, ierrors.New(ierrors.BadInput, "RenameMembers", nil)
	}

	var newNameField [16]byte
	for i := range newNameField {
		newNameField[i] = ' '
	}
	copy(newNameField[:], newName)

	offset := len(magic)
	renamed := 0
	memberIndex := 0
	for offset+headerSize <= len(data) {
		name := strings.TrimRight(string(data[offset:offset+16]), " ")
		size, err := parseSize(data[offset+48 : offset+58])
		if err != nil {
			return renamed, ierrors.New(ierrors.BadInput, "RenameMembers", err)
		}

		isDirectory := memberIndex < 2 && name == "/" || name == "//"
		if !isDirectory {
			copy(data[offset:offset+16], newNameField[:])
			renamed++
		}

		offset += headerSize + padLen(size)
		memberIndex++
	}
	return renamed, nil
}

func parseSize(field []byte) (int, error) {
	s := strings.TrimRight(string(field), " ")
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
