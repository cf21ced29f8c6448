// Command dumpsyms extracts a DLL's export table as plain text, one line
// per export.
//
// usage: dumpsyms [-v] [-compact] <dll> [<output.txt>]
//
// Grounded on _examples/original_source/dumpsyms/dumpsyms.cpp (and the
// reference dumpsyms.py) for the textual record shape: full mode prints
// "ordinal\tname\tRVA" (or "ordinal\tname\t-> forwarder" for a forwarder),
// compact mode prints the bare name. Building the resulting text into a
// cmd/makeimplib JSON manifest is a separate, out-of-scope step (spec.md
// section 1 places JSON marshalling outside this generator's boundary).
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
	compact = flag.Bool("compact", env.Bool("IMPLIBGEN_COMPACT"), "omit ordinal and RVA/forwarder columns")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: dumpsyms [-v] [-compact] <dll> [<output.txt>]")
		os.Exit(2)
	}

	dllPath := args[0]
	outPath := dllPath + ".txt"
	if len(args) > 1 {
		outPath = args[1]
	}

	if err := run(dllPath, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "dumpsyms: %v\n", err)
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
		fmt.Fprintf(os.Stderr, "dumpsyms: %s, %d exports\n", dllPath, len(exports))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, e := range exports {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("ord.%d", e.Ordinal) // NONAME export, no name-table entry
		}
		if *compact {
			fmt.Fprintln(w, name)
			continue
		}
		if e.Forward != "" {
			fmt.Fprintf(w, "%d\t%s\t-> %s\n", e.Ordinal, name, e.Forward)
		} else {
			fmt.Fprintf(w, "%d\t%s\t0x%08x\n", e.Ordinal, name, e.RVA)
		}
	}
	return w.Flush()
}
