package main

import (
	"flag"
	"fmt"
	"os"
)

// cmdBuild implements `tea build <file>` (spec §6). The native
// ahead-of-time backend is an external collaborator (spec §1's Non-goals);
// this driver compiles through bytecode generation and validates the
// program end to end, then reports that the AOT step itself must be
// supplied by that external backend rather than pretending to produce a
// binary it can't.
func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: tea build <file>\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	inputFile := fs.Arg(0)
	result, err := compileFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tea build: %v\n", err)
		os.Exit(1)
	}
	if reportDiagnostics(&result.Diags) {
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "tea build: %s compiles cleanly (%d globals, %d functions, %d tests); "+
		"native code generation is an external AOT backend not built into this driver\n",
		inputFile, len(result.Program.Globals), len(result.Program.Functions), len(result.Program.Tests))
	os.Exit(1)
}
