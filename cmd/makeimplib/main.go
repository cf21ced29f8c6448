// Command makeimplib builds a Windows import library (.lib) from a JSON
// manifest describing a DLL's imports.
//
// usage: makeimplib [-v] <input.json> <output.lib>
//
// Ported from _examples/original_source/MakeImpLib/main.cpp: decode the
// manifest, dispatch AddImportFunctionByName/ByOrdinal per symbol based on
// whether "name" is set, Build, write the file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/implibgen/internal/ierrors"
	"github.com/xyproto/implibgen/internal/implib"
	"github.com/xyproto/implibgen/internal/manifest"
)

var verbose = flag.Bool("v", env.Bool("IMPLIBGEN_VERBOSE"), "verbose mode")

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: makeimplib [-v] <input.json> <output.lib>")
		os.Exit(2)
	}

	if err := run(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "makeimplib: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return ierrors.Wrap(ierrors.Io, "run", err)
	}
	defer f.Close()

	m, err := manifest.Decode(f)
	if err != nil {
		return err
	}

	var arch implib.Arch
	if m.Arch == 64 {
		arch = implib.X64{}
	} else {
		arch = implib.X86{}
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "makeimplib: %s, %d-bit, %d symbols\n", m.DLLName, m.Arch, len(m.Symbols))
	}

	builder, err := implib.NewImportLibraryBuilder(m.DLLName, arch)
	if err != nil {
		return err
	}

	for _, sym := range m.Symbols {
		if sym.ByName() {
			if err := builder.AddImportFunctionByName(sym.PublicName, sym.Thunk, sym.Name); err != nil {
				return err
			}
		} else {
			if err := builder.AddImportFunctionByOrdinal(sym.PublicName, sym.Thunk, sym.Ordinal); err != nil {
				return err
			}
		}
	}

	if err := builder.Build(); err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, builder.RawData(), 0o644); err != nil {
		return ierrors.Wrap(ierrors.Io, "run", err)
	}
	return nil
}
