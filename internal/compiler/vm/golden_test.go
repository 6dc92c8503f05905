package vm

import (
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// TestPrintGoldenOutput pins OpConcatStrings + OpPrint's exact rendering
// against a txtar fixture, the same bundling format golden-file corpora
// use elsewhere in the Go ecosystem: the expected text lives next to the
// test instead of as a Go string literal, so it reads as data, not code.
func TestPrintGoldenOutput(t *testing.T) {
	archive, err := txtar.ParseFile("testdata/print_hello.txtar")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	var want string
	for _, f := range archive.Files {
		if f.Name == "expected_stdout" {
			want = strings.TrimSuffix(string(f.Data), "\n")
		}
	}
	if want == "" {
		t.Fatalf("fixture missing expected_stdout section: %+v", archive.Files)
	}

	p := program([]Instruction{
		{Op: OpConstant, A: 0},
		{Op: OpConstant, A: 1},
		{Op: OpConcatStrings, A: 2},
		{Op: OpPrint},
		{Op: OpConstant, A: 2},
		{Op: OpReturn},
	}, []Value{NewString("hello, "), NewString("tea"), Nil()})

	v := New(p)
	var out strings.Builder
	v.Stdout = func(s string) { out.WriteString(s) }

	if _, err := v.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.TrimSuffix(out.String(), "\n")
	if got != want {
		t.Fatalf("got %q, want %q (from testdata/print_hello.txtar)", got, want)
	}
}
