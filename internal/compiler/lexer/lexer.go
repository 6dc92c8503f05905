// Package lexer turns tea source text into a stream of tokens.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/token"
)

// interpState is the state of one currently-open interpolated string.
type interpState struct {
	quote      rune
	state      int // stateSegment or stateExpr
	braceDepth int // nested `{`/`}` seen while state == stateExpr
}

const (
	stateSegment = iota
	stateExpr
)

// Lexer produces tea tokens from a source string, one NextToken call at a
// time. String interpolation is handled by a small stack of interpState
// frames: entering `${` inside a string pushes expr mode on the active
// frame, and the matching `}` pops back to segment mode, so nested
// interpolated strings inside an interpolated expression work for free.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           rune
	line         int
	column       int

	interpStack []interpState
	diags       diagnostics.Bag
}

// New creates a Lexer over input. The source is first normalized to
// Unicode NFC so that identifiers and string content compare equal
// regardless of the combining-character form the editor that produced them
// used. Lexical errors (unterminated strings, invalid escapes, illegal
// bytes) are recorded on the Lexer's own diagnostics bag, retrievable via
// Diagnostics.
func New(input string) *Lexer {
	l := &Lexer{input: norm.NFC.String(input), line: 1, column: 0}
	l.readChar()
	return l
}

// Diagnostics returns the bag of lexical diagnostics accumulated so far.
func (l *Lexer) Diagnostics() *diagnostics.Bag {
	return &l.diags
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	if r == utf8.RuneError && size == 1 {
		l.diags.AddSpanless(diagnostics.Error, "lexer", "invalid UTF-8 byte at offset %d", l.readPosition)
	}
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.column, Offset: l.position}
}

// NextToken returns the next token in the stream.
func (l *Lexer) NextToken() token.Token {
	if n := len(l.interpStack); n > 0 && l.interpStack[n-1].state == stateSegment {
		return l.nextInterpSegment()
	}

	l.skipWhitespaceAndComments()
	pos := l.currentPos()

	if n := len(l.interpStack); n > 0 && l.interpStack[n-1].state == stateExpr {
		if tok, handled := l.handleExprBrace(pos); handled {
			return tok
		}
	}

	switch l.ch {
	case '\n':
		l.readChar()
		return token.Token{Kind: token.NEWLINE, Literal: "\n", Pos: pos}
	case '#':
		// A lone '#' is consumed as a comment by skipWhitespaceAndComments;
		// reaching here means '##', a doc comment.
		return l.readDocComment(pos)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.EQ, Literal: "==", Pos: pos}
		}
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.ARROW, Literal: "=>", Pos: pos}
		}
		return l.single(token.ASSIGN, pos)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.NOT_EQ, Literal: "!=", Pos: pos}
		}
		return l.single(token.BANG, pos)
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.THIN_ARROW, Literal: "->", Pos: pos}
		}
		return l.single(token.MINUS, pos)
	case '?':
		if l.peekChar() == '?' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.QUESTION_QUESTION, Literal: "??", Pos: pos}
		}
		return l.single(token.QUESTION, pos)
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			if l.peekChar() == '.' {
				l.readChar()
				l.readChar()
				return token.Token{Kind: token.DOTDOTDOT, Literal: "...", Pos: pos}
			}
			l.readChar()
			return token.Token{Kind: token.DOTDOT, Literal: "..", Pos: pos}
		}
		return l.single(token.DOT, pos)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.LT_EQ, Literal: "<=", Pos: pos}
		}
		return l.single(token.LT, pos)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Kind: token.GT_EQ, Literal: ">=", Pos: pos}
		}
		return l.single(token.GT, pos)
	case '+':
		return l.single(token.PLUS, pos)
	case '*':
		return l.single(token.ASTERISK, pos)
	case '/':
		return l.single(token.SLASH, pos)
	case '%':
		return l.single(token.PERCENT, pos)
	case ':':
		return l.single(token.COLON, pos)
	case ';':
		return l.single(token.SEMICOLON, pos)
	case ',':
		return l.single(token.COMMA, pos)
	case '(':
		return l.single(token.LPAREN, pos)
	case ')':
		return l.single(token.RPAREN, pos)
	case '{':
		return l.single(token.LBRACE, pos)
	case '}':
		return l.single(token.RBRACE, pos)
	case '[':
		return l.single(token.LBRACKET, pos)
	case ']':
		return l.single(token.RBRACKET, pos)
	case '|':
		return l.single(token.PIPE, pos)
	case '"', '`':
		return l.beginInterpolatedString(pos)
	case 0:
		return token.Token{Kind: token.EOF, Pos: pos}
	default:
		if isLetter(l.ch) {
			lit := l.readIdentifier()
			return token.Token{Kind: token.LookupIdent(lit), Literal: lit, Pos: pos}
		}
		if isDigit(l.ch) {
			lit, isFloat := l.readNumber()
			kind := token.INT
			if isFloat {
				kind = token.FLOAT
			}
			return token.Token{Kind: kind, Literal: lit, Pos: pos}
		}
		l.diags.Add(diagnostics.Error, "lexer", diagnostics.Span{Line: pos.Line, Column: pos.Column}, "unexpected character %q", l.ch)
		return l.single(token.ILLEGAL, pos)
	}
}

func (l *Lexer) single(kind token.Kind, pos token.Position) token.Token {
	lit := string(l.ch)
	if kind == token.LBRACE {
		l.noteBraceEnter()
	} else if kind == token.RBRACE {
		l.noteBraceExit()
	}
	l.readChar()
	return token.Token{Kind: kind, Literal: lit, Pos: pos}
}

// noteBraceEnter/noteBraceExit keep the active interpolation frame's brace
// depth in sync when a `{`/`}` pair appears inside an interpolated
// expression (e.g. a struct or dict literal) rather than terminating it.
func (l *Lexer) noteBraceEnter() {
	if n := len(l.interpStack); n > 0 && l.interpStack[n-1].state == stateExpr {
		l.interpStack[n-1].braceDepth++
	}
}

func (l *Lexer) noteBraceExit() {
	if n := len(l.interpStack); n > 0 && l.interpStack[n-1].state == stateExpr {
		if l.interpStack[n-1].braceDepth > 0 {
			l.interpStack[n-1].braceDepth--
		}
	}
}

// handleExprBrace intercepts the `}` that closes a `${...}` expression,
// turning it into InterpExprEnd and switching the frame back to segment
// mode, instead of letting it fall through as an ordinary RBRACE.
func (l *Lexer) handleExprBrace(pos token.Position) (token.Token, bool) {
	top := &l.interpStack[len(l.interpStack)-1]
	if l.ch == '}' && top.braceDepth == 0 {
		l.readChar()
		top.state = stateSegment
		return token.Token{Kind: token.InterpExprEnd, Pos: pos}, true
	}
	return token.Token{}, false
}

func (l *Lexer) readDocComment(pos token.Position) token.Token {
	// l.ch == '#', peek == '#'.
	l.readChar()
	l.readChar()
	start := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	text := strings.TrimSpace(l.input[start:l.position])
	return token.Token{Kind: token.DocComment, Literal: text, Pos: pos}
}

func (l *Lexer) beginInterpolatedString(pos token.Position) token.Token {
	quote := l.ch
	l.readChar() // consume opening quote
	l.interpStack = append(l.interpStack, interpState{quote: quote, state: stateSegment})
	return token.Token{Kind: token.InterpStart, Pos: pos}
}

// nextInterpSegment scans plain text up to (but not past) the next `${` or
// the string's closing quote, decoding escapes as it goes. An empty segment
// immediately yields the InterpExprStart or InterpEnd token instead of a
// zero-length InterpSegment.
func (l *Lexer) nextInterpSegment() token.Token {
	top := &l.interpStack[len(l.interpStack)-1]
	pos := l.currentPos()

	var sb strings.Builder
	for {
		if l.ch == 0 {
			l.diags.AddSpanless(diagnostics.Error, "lexer", "unterminated string literal")
			l.interpStack = l.interpStack[:len(l.interpStack)-1]
			if sb.Len() > 0 {
				return token.Token{Kind: token.InterpSegment, Literal: sb.String(), Pos: pos}
			}
			return token.Token{Kind: token.InterpEnd, Pos: pos}
		}
		if l.ch == top.quote {
			break
		}
		if l.ch == '$' && l.peekChar() == '{' {
			break
		}
		if l.ch == '\\' {
			r, ok := l.readEscape()
			if ok {
				sb.WriteRune(r)
			}
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if sb.Len() > 0 {
		return token.Token{Kind: token.InterpSegment, Literal: sb.String(), Pos: pos}
	}

	if l.ch == top.quote {
		l.readChar()
		l.interpStack = l.interpStack[:len(l.interpStack)-1]
		return token.Token{Kind: token.InterpEnd, Pos: pos}
	}

	// l.ch == '$', peek == '{'.
	l.readChar()
	l.readChar()
	top.state = stateExpr
	top.braceDepth = 0
	return token.Token{Kind: token.InterpExprStart, Pos: pos}
}

// readEscape consumes a backslash escape sequence and returns the decoded
// rune. ok is false when the escape was malformed (already reported).
func (l *Lexer) readEscape() (rune, bool) {
	pos := l.currentPos()
	l.readChar() // consume backslash
	switch l.ch {
	case 'n':
		l.readChar()
		return '\n', true
	case 't':
		l.readChar()
		return '\t', true
	case 'r':
		l.readChar()
		return '\r', true
	case '0':
		l.readChar()
		return 0, true
	case '\\':
		l.readChar()
		return '\\', true
	case '"':
		l.readChar()
		return '"', true
	case '`':
		l.readChar()
		return '`', true
	case '$':
		l.readChar()
		return '$', true
	case 'x':
		l.readChar()
		hi, okHi := hexDigit(l.ch)
		if !okHi {
			l.diags.Add(diagnostics.Error, "lexer", diagnostics.Span{Line: pos.Line, Column: pos.Column}, "invalid \\x escape")
			return 0, false
		}
		l.readChar()
		lo, okLo := hexDigit(l.ch)
		if !okLo {
			l.diags.Add(diagnostics.Error, "lexer", diagnostics.Span{Line: pos.Line, Column: pos.Column}, "invalid \\x escape")
			return 0, false
		}
		l.readChar()
		return rune(hi*16 + lo), true
	default:
		l.diags.Add(diagnostics.Error, "lexer", diagnostics.Span{Line: pos.Line, Column: pos.Column}, "unknown escape sequence \\%c", l.ch)
		bad := l.ch
		l.readChar()
		return bad, false
	}
}

func hexDigit(ch rune) (int, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10, true
	default:
		return 0, false
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' && l.peekChar() != '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() (string, bool) {
	start := l.position
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := l.position
		savedRead, savedCh, savedLine, savedCol := l.readPosition, l.ch, l.line, l.column
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			isFloat = true
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			l.position, l.readPosition, l.ch, l.line, l.column = save, savedRead, savedCh, savedLine, savedCol
		}
	}

	return l.input[start:l.position], isFloat
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isDigit(ch rune) bool {
	return unicode.IsDigit(ch)
}
