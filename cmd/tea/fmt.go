package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// openers are leading keywords that open an `end`-terminated block (spec
// §6's source syntax: "Block openers closed by end").
var openers = []string{
	"def ", "pub def ", "struct ", "enum ", "test ", "if ", "unless ",
	"while ", "until ", "for ", "try", "match ",
}

// midpoints sit at the enclosing block's indent level rather than the
// block body's: `else` rejoins an `if`/`unless`, `catch` rejoins a `try`.
var midpoints = []string{"else", "catch"}

const indentUnit = "  "

// cmdFmt implements `tea fmt <paths…> [--check]` (spec §6). The formatter
// itself re-indents based on tea's keyword block structure the way the
// teacher's fmt.go re-indents `<script>`/`<template>`/`<style>` sections:
// strip existing indentation, then reapply it from block nesting.
func cmdFmt(args []string) {
	fs := flag.NewFlagSet("fmt", flag.ExitOnError)
	check := fs.Bool("check", false, "report files that would change, without writing them")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: tea fmt [--check] <paths...>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	changed := false
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tea fmt: %v\n", err)
			os.Exit(1)
		}

		original := string(data)
		formatted := formatSource(original)
		if formatted == original {
			continue
		}
		changed = true

		if *check {
			fmt.Printf("%s would be reformatted\n", path)
			continue
		}
		if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "tea fmt: writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if *check && changed {
		os.Exit(1)
	}
}

// formatSource re-indents tea source two spaces per nesting level,
// determined purely from each line's leading keyword. It does not reflow
// expressions or reformat string interpolation bodies.
func formatSource(src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	depth := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, "")
			continue
		}

		switch {
		case trimmed == "end" || strings.HasPrefix(trimmed, "end "):
			depth = max(depth-1, 0)
			out = append(out, indentUnit2(depth)+trimmed)
		case isMidpoint(trimmed):
			out = append(out, indentUnit2(max(depth-1, 0))+trimmed)
		case isOpener(trimmed):
			out = append(out, indentUnit2(depth)+trimmed)
			depth++
		default:
			out = append(out, indentUnit2(depth)+trimmed)
		}
	}

	return strings.Join(out, "\n")
}

func isOpener(line string) bool {
	for _, o := range openers {
		if line == strings.TrimSpace(o) || strings.HasPrefix(line, o) {
			return true
		}
	}
	return false
}

func isMidpoint(line string) bool {
	for _, m := range midpoints {
		if line == m || strings.HasPrefix(line, m+" ") {
			return true
		}
	}
	return false
}

func indentUnit2(depth int) string {
	return strings.Repeat(indentUnit, depth)
}
