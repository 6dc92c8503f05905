package diagnostics

import "testing"

func TestBagHasErrors(t *testing.T) {
	var b Bag
	b.AddSpanless(Warning, "lexer", "trailing whitespace")
	if b.HasErrors() {
		t.Fatalf("warning-only bag reported HasErrors")
	}
	b.Add(Error, "parser", Span{Line: 3, Column: 4}, "unexpected token %s", "END")
	if !b.HasErrors() {
		t.Fatalf("bag with an Error entry reported no errors")
	}
}

func TestBagSummaryPluralization(t *testing.T) {
	var b Bag
	b.AddSpanless(Error, "checker", "mismatched types")
	if got := b.Summary(); got != "1 error" {
		t.Fatalf("Summary() = %q, want %q", got, "1 error")
	}
	b.AddSpanless(Error, "checker", "wrong arity")
	if got := b.Summary(); got != "2 errors" {
		t.Fatalf("Summary() = %q, want %q", got, "2 errors")
	}
}

func TestUnion(t *testing.T) {
	a := Span{Line: 2, Column: 5, EndLine: 2, EndColumn: 9}
	b := Span{Line: 1, Column: 1, EndLine: 3, EndColumn: 2}
	u := Union(a, b)
	if u.Line != 1 || u.Column != 1 || u.EndLine != 3 || u.EndColumn != 2 {
		t.Fatalf("Union() = %+v, want the wider span", u)
	}
}
