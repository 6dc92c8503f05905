package lexer

import (
	"testing"

	"github.com/bentruyman/tea/internal/compiler/token"
)

func collect(input string) []token.Token {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestNextTokenOperatorsAndDelimiters(t *testing.T) {
	input := `= == => -> ?? ? != ! <= < >= > + - * / % : ; , . .. ... ( ) { } [ ] |`

	want := []token.Kind{
		token.ASSIGN, token.EQ, token.ARROW, token.THIN_ARROW, token.QUESTION_QUESTION,
		token.QUESTION, token.NOT_EQ, token.BANG, token.LT_EQ, token.LT, token.GT_EQ, token.GT,
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
		token.COLON, token.SEMICOLON, token.COMMA, token.DOT, token.DOTDOT, token.DOTDOTDOT,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACKET, token.RBRACKET,
		token.PIPE, token.EOF,
	}

	toks := collect(input)
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := "def pub total_count end"
	toks := collect(input)
	want := []struct {
		kind token.Kind
		lit  string
	}{
		{token.DEF, "def"},
		{token.PUB, "pub"},
		{token.IDENT, "total_count"},
		{token.END, "end"},
		{token.EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Literal != w.lit {
			t.Fatalf("token %d: got (%s, %q), want (%s, %q)", i, toks[i].Kind, toks[i].Literal, w.kind, w.lit)
		}
	}
}

func TestNextTokenNumbers(t *testing.T) {
	cases := []struct {
		input string
		kind  token.Kind
		lit   string
	}{
		{"42", token.INT, "42"},
		{"3.14", token.FLOAT, "3.14"},
		{"1e10", token.FLOAT, "1e10"},
		{"1.5e-3", token.FLOAT, "1.5e-3"},
		{"10.next", token.INT, "10"}, // `.` not followed by a digit is member access, not part of the literal
	}
	for _, c := range cases {
		toks := collect(c.input)
		if toks[0].Kind != c.kind || toks[0].Literal != c.lit {
			t.Fatalf("input %q: got (%s, %q), want (%s, %q)", c.input, toks[0].Kind, toks[0].Literal, c.kind, c.lit)
		}
	}
}

func TestNextTokenNewlineIsSignificant(t *testing.T) {
	toks := collect("var x = 1\nvar y = 2")
	var newlines int
	for _, tok := range toks {
		if tok.Kind == token.NEWLINE {
			newlines++
		}
	}
	if newlines != 1 {
		t.Fatalf("got %d NEWLINE tokens, want 1", newlines)
	}
}

func TestNextTokenLineCommentIsDropped(t *testing.T) {
	toks := collect("var x = 1 # trailing comment\n")
	for _, tok := range toks {
		if tok.Kind == token.DocComment {
			t.Fatalf("line comment leaked as DocComment: %+v", tok)
		}
	}
}

func TestNextTokenDocComment(t *testing.T) {
	toks := collect("## returns the total\ndef total()\nend")
	if toks[0].Kind != token.DocComment {
		t.Fatalf("got %s, want DocComment", toks[0].Kind)
	}
	if toks[0].Literal != "returns the total" {
		t.Fatalf("got doc comment %q", toks[0].Literal)
	}
}

func TestNextTokenSimpleString(t *testing.T) {
	toks := collect(`"hello"`)
	want := []token.Kind{token.InterpStart, token.InterpSegment, token.InterpEnd, token.EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
	if toks[1].Literal != "hello" {
		t.Fatalf("segment literal = %q, want %q", toks[1].Literal, "hello")
	}
}

func TestNextTokenEmptyString(t *testing.T) {
	toks := collect(`""`)
	want := []token.Kind{token.InterpStart, token.InterpEnd, token.EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
}

func TestNextTokenInterpolatedString(t *testing.T) {
	toks := collect(`"hi ${name}!"`)
	want := []token.Kind{
		token.InterpStart,
		token.InterpSegment,
		token.InterpExprStart,
		token.IDENT,
		token.InterpExprEnd,
		token.InterpSegment,
		token.InterpEnd,
		token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
	if toks[1].Literal != "hi " || toks[5].Literal != "!" {
		t.Fatalf("unexpected segment text: %+v", toks)
	}
}

func TestNextTokenInterpolationWithStructLiteralBraces(t *testing.T) {
	toks := collect(`"${Box{value: 1}}"`)
	var exprEnds int
	for _, tok := range toks {
		if tok.Kind == token.InterpExprEnd {
			exprEnds++
		}
		if tok.Kind == token.RBRACE {
			// one RBRACE for the struct literal itself; the outer `}` closing
			// the interpolation must come back as InterpExprEnd, not RBRACE.
		}
	}
	if exprEnds != 1 {
		t.Fatalf("got %d InterpExprEnd tokens, want 1: %+v", exprEnds, toks)
	}
}

func TestNextTokenBacktickStringSupportsInterpolation(t *testing.T) {
	toks := collect("`total: ${n}`")
	if toks[0].Kind != token.InterpStart {
		t.Fatalf("got %s, want InterpStart", toks[0].Kind)
	}
	var sawExprStart bool
	for _, tok := range toks {
		if tok.Kind == token.InterpExprStart {
			sawExprStart = true
		}
	}
	if !sawExprStart {
		t.Fatalf("backtick string did not interpolate: %+v", toks)
	}
}

func TestNextTokenStringEscapes(t *testing.T) {
	toks := collect(`"a\nb\t\"c\""`)
	if toks[1].Kind != token.InterpSegment {
		t.Fatalf("got %s, want InterpSegment", toks[1].Kind)
	}
	want := "a\nb\t\"c\""
	if toks[1].Literal != want {
		t.Fatalf("got %q, want %q", toks[1].Literal, want)
	}
}

func TestNextTokenUnterminatedStringReportsDiagnostic(t *testing.T) {
	l := New(`"unterminated`)
	for {
		tok := l.NextToken()
		if tok.Kind == token.EOF {
			break
		}
	}
	if !l.Diagnostics().HasErrors() {
		t.Fatalf("expected an unterminated-string diagnostic")
	}
}

func TestNextTokenIllegalCharacterReportsDiagnostic(t *testing.T) {
	l := New("@")
	l.NextToken()
	if !l.Diagnostics().HasErrors() {
		t.Fatalf("expected a diagnostic for an illegal character")
	}
}
