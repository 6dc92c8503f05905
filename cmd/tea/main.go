// Command tea is the driver for the tea scripting language: it lexes,
// parses, expands, resolves, type-checks, and generates bytecode for a
// `.tea` program, then either runs it on the bytecode VM or hands it to
// the formatter/test runner (spec §6). Each subcommand owns its own
// flag.FlagSet, following the teacher's cmd/gmx per-subcommand style.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "run":
		cmdRun(args)
	case "fmt":
		cmdFmt(args)
	case "test":
		cmdTest(args)
	case "build":
		cmdBuild(args)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "tea: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tea <command> [arguments]

Commands:
  run <file> [args...]   compile and execute a tea program
  fmt [--check] <paths>  format tea source files
  test [paths...]        discover and run test blocks
  build <file>           drive the external AOT backend
`)
}
