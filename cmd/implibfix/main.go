// Command implibfix renames every object member inside an import library,
// leaving its linker-member symbol directories untouched.
//
// usage: implibfix [-v] <new-name> <library.lib>
//
// Ported from _examples/original_source/ImpLibFix/ImpLibFix.h's
// RenameImpLibObjects: the new name replaces every object member's header
// name, while the first/second linker members and the longnames member are
// left untouched. The file is rewritten in place.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/implibgen/internal/archive"
	"github.com/xyproto/implibgen/internal/ierrors"
)

var verbose = flag.Bool("v", env.Bool("IMPLIBGEN_VERBOSE"), "verbose mode")

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: implibfix [-v] <new-name> <library.lib>")
		os.Exit(2)
	}

	if err := run(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "implibfix: %v\n", err)
		os.Exit(1)
	}
}

func run(newName, libPath string) error {
	data, err := os.ReadFile(libPath)
	if err != nil {
		return ierrors.Wrap(ierrors.Io, "run", err)
	}

	renamed, err := archive.RenameMembers(newName, data)
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "implibfix: renamed %d member(s) in %s\n", renamed, libPath)
	}

	if err := os.WriteFile(libPath, data, 0o644); err != nil {
		return ierrors.Wrap(ierrors.Io, "run", err)
	}
	return nil
}
