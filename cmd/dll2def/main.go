// Command dll2def extracts a DLL's export table as a classic linker module
// definition (.def) file.
//
// usage: dll2def [-v] [-compact] <dll> [<output.def>]
//
// Grounded on _examples/original_source/dll2def/dll2def.cpp for the overall
// shape (DLL export walk -> one line per symbol); the emitted format here is
// the standard EXPORTS-section .def file a linker (link.exe /DEF or MinGW's
// dlltool) actually consumes, rather than the source's implib-macro text
// (that shape is what cmd/dumpsyms already produces). A forwarder export
// carries no RVA of its own and is not marked NONAME; outside -compact mode
// it is annotated with a trailing comment naming its target, since .def
// syntax has no forwarder notation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/implibgen/internal/peexport"
)

var (
	verbose = flag.Bool("v", env.Bool("IMPLIBGEN_VERBOSE"), "verbose mode")
	compact = flag.Bool("compact", env.Bool("IMPLIBGEN_COMPACT"), "omit NONAME attributes and forwarder comments")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: dll2def [-v] [-compact] <dll> [<output.def>]")
		os.Exit(2)
	}

	dllPath := args[0]
	outPath := dllPath + ".def"
	if len(args) > 1 {
		outPath = args[1]
	}

	if err := run(dllPath, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "dll2def: %v\n", err)
		os.Exit(1)
	}
}

func run(dllPath, outPath string) error {
	f, err := os.Open(dllPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := peexport.Open(f)
	if err != nil {
		return err
	}
	exports, err := reader.Exports()
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "dll2def: %s, %d exports\n", dllPath, len(exports))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprintln(w, "EXPORTS")
	for _, e := range exports {
		name := e.Name
		noname := ""
		if name == "" {
			// A genuine NONAME export: no name-table entry at all, bound
			// only by ordinal. .def syntax still requires some identifier
			// token, so the ordinal itself stands in for it.
			name = fmt.Sprintf("ord_%d", e.Ordinal)
			noname = " NONAME"
		}
		switch {
		case e.Forward != "" && !*compact:
			fmt.Fprintf(w, "    %s ; -> %s\n", name, e.Forward)
		case e.Forward != "":
			fmt.Fprintf(w, "    %s\n", name)
		case *compact:
			fmt.Fprintf(w, "    %s @%d\n", name, e.Ordinal)
		default:
			fmt.Fprintf(w, "    %s @%d%s\n", name, e.Ordinal, noname)
		}
	}
	return w.Flush()
}
