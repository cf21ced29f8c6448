// Package manifest decodes the JSON import-library manifest consumed by
// cmd/makeimplib, matching the field names
// _examples/original_source/MakeImpLib/main.cpp reads out of its
// nlohmann::json value.
package manifest

import (
	"encoding/json"
	"io"

	"github.com/xyproto/implibgen/internal/ierrors"
)

// Symbol is one entry of the manifest's "symbols" array. Name is empty for
// an ordinal-only import, matching the source's `if (!name.empty())`
// by-name/by-ordinal branch.
type Symbol struct {
	CallingConvention string `json:"cconv"`
	Name              string `json:"name"`
	Ordinal           int    `json:"ord"`
	Thunk             string `json:"thunk"`
	PublicName        string `json:"pubname"`
}

// Manifest is the top-level decoded document.
type Manifest struct {
	DLLName string   `json:"dllname"`
	Arch    int      `json:"arch"`
	Symbols []Symbol `json:"symbols"`
}

// Decode reads and validates one manifest from r.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, ierrors.Wrap(ierrors.BadInput, "manifest.Decode", err)
	}
	if m.DLLName == "" {
		return nil, ierrors.New(ierrors.BadInput, "manifest.Decode", nil)
	}
	if m.Arch != 32 && m.Arch != 64 {
		return nil, ierrors.New(ierrors.BadInput, "manifest.Decode", nil)
	}
	return &m, nil
}

// ByName reports whether s should be imported by name rather than ordinal,
// mirroring the source's `if (!name.empty())` dispatch.
func (s Symbol) ByName() bool {
	return s.Name != ""
}
