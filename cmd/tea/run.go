package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bentruyman/tea/internal/compiler/vm"
)

// cmdRun implements `tea run <file> [args…]` (spec §6).
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dumpTokensFlag := fs.Bool("dump-tokens", false, "print every lexed token and exit")
	emit := fs.String("emit", "", "print an intermediate form instead of running: ast|bytecode|llvm-ir")
	noRun := fs.Bool("no-run", false, "compile but do not execute")
	backend := fs.String("backend", "bytecode", "execution backend: bytecode|llvm")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: tea run [flags] <file> [-- args...]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	inputFile := fs.Arg(0)
	var programArgs []string
	if fs.NArg() > 1 {
		programArgs = fs.Args()[1:]
	}

	if *backend == "llvm" || *emit == "llvm-ir" {
		fmt.Fprintln(os.Stderr, "tea run: the LLVM/native backend is an external collaborator and is not built into this driver")
		os.Exit(1)
	}
	if *backend != "bytecode" {
		fmt.Fprintf(os.Stderr, "tea run: unknown backend %q\n", *backend)
		os.Exit(1)
	}

	if *dumpTokensFlag {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tea run: %v\n", err)
			os.Exit(1)
		}
		dumpTokens(os.Stdout, string(data))
		return
	}

	result, err := compileFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tea run: %v\n", err)
		os.Exit(1)
	}
	if reportDiagnostics(&result.Diags) {
		os.Exit(1)
	}

	switch *emit {
	case "":
	case "ast":
		dumpAST(os.Stdout, result.Module)
		return
	case "bytecode":
		dumpBytecode(os.Stdout, result.Program)
		return
	default:
		fmt.Fprintf(os.Stderr, "tea run: unknown --emit form %q\n", *emit)
		os.Exit(1)
	}

	if *noRun {
		return
	}

	m := vm.New(result.Program)
	registerBuiltins(m, builtinOptions{ProgramArgs: programArgs})
	if _, err := m.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tea run: %v\n", err)
		os.Exit(1)
	}
}
