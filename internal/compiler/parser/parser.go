// Package parser builds an AST from a token stream via recursive descent
// with Pratt-style precedence for expressions (spec §4.3).
package parser

import (
	"strconv"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/token"
)

// Precedence levels, lowest to highest (spec §4.3).
const (
	_ int = iota
	precLowest
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precRange
	precTerm
	precFactor
	precUnary
	precPostfix
)

var precedences = map[token.Kind]int{
	token.ASSIGN:            precAssignment,
	token.OR:                precOr,
	token.AND:               precAnd,
	token.EQ:                precEquality,
	token.NOT_EQ:            precEquality,
	token.LT:                precComparison,
	token.GT:                precComparison,
	token.LT_EQ:             precComparison,
	token.GT_EQ:             precComparison,
	token.QUESTION_QUESTION: precComparison,
	token.DOTDOT:            precRange,
	token.DOTDOTDOT:         precRange,
	token.PLUS:              precTerm,
	token.MINUS:             precTerm,
	token.ASTERISK:          precFactor,
	token.SLASH:             precFactor,
	token.PERCENT:           precFactor,
	token.LPAREN:            precPostfix,
	token.LBRACKET:          precPostfix,
	token.LBRACE:            precPostfix,
	token.DOT:               precPostfix,
	token.BANG:              precPostfix,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes a token stream and produces a *ast.Module.
type Parser struct {
	l     *lexer.Lexer
	diags diagnostics.Bag

	curToken  token.Token
	peekToken token.Token

	nextLambdaID int

	prefixFns map[token.Kind]prefixParseFn
	infixFns  map[token.Kind]infixParseFn
}

// New creates a Parser over the tokens produced by l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixFns = map[token.Kind]prefixParseFn{
		token.IDENT:       p.parseIdentifier,
		token.INT:         p.parseIntLiteral,
		token.FLOAT:       p.parseFloatLiteral,
		token.BOOL:        p.parseBoolLiteral,
		token.NIL:         p.parseNilLiteral,
		token.NOT:         p.parseUnary,
		token.MINUS:       p.parseUnary,
		token.LPAREN:      p.parseGrouping,
		token.LBRACKET:    p.parseListLiteral,
		token.LBRACE:      p.parseDictLiteral,
		token.PIPE:        p.parseLambda,
		token.InterpStart: p.parseInterpolatedString,
		token.MATCH:       p.parseMatchExpr,
	}

	p.infixFns = map[token.Kind]infixParseFn{
		token.PLUS:              p.parseBinary,
		token.MINUS:             p.parseBinary,
		token.ASTERISK:          p.parseBinary,
		token.SLASH:             p.parseBinary,
		token.PERCENT:           p.parseBinary,
		token.EQ:                p.parseBinary,
		token.NOT_EQ:            p.parseBinary,
		token.LT:                p.parseBinary,
		token.GT:                p.parseBinary,
		token.LT_EQ:             p.parseBinary,
		token.GT_EQ:             p.parseBinary,
		token.AND:               p.parseBinary,
		token.OR:                p.parseBinary,
		token.QUESTION_QUESTION: p.parseBinary,
		token.DOTDOT:            p.parseRange,
		token.DOTDOTDOT:         p.parseRange,
		token.ASSIGN:            p.parseAssignment,
		token.LPAREN:            p.parseCall,
		token.LBRACKET:          p.parseIndexOrGenericCall,
		token.LBRACE:            p.parseStructLiteral,
		token.DOT:               p.parseMember,
		token.BANG:              p.parseUnwrap,
	}

	p.nextToken()
	p.nextToken()
	return p
}

// Diagnostics returns the bag of parse diagnostics accumulated so far.
func (p *Parser) Diagnostics() *diagnostics.Bag {
	return &p.diags
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) span(start token.Position) diagnostics.Span {
	end := p.curToken.Pos
	return diagnostics.Span{Line: start.Line, Column: start.Column, EndLine: end.Line, EndColumn: end.Column}
}

func (p *Parser) curIs(k token.Kind) bool  { return p.curToken.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool { return p.peekToken.Kind == k }

func (p *Parser) expect(k token.Kind) bool {
	if p.curIs(k) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", k, p.curToken.Kind)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	p.diags.Add(diagnostics.Error, "parser",
		diagnostics.Span{Line: p.curToken.Pos.Line, Column: p.curToken.Pos.Column}, format, args...)
}

// skipNewlines consumes the leading-newline gate shared by every statement
// rule (spec §4.3).
func (p *Parser) skipNewlines() {
	for p.curIs(token.NEWLINE) {
		p.nextToken()
	}
}

// ParseModule parses the whole token stream into a Module.
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{}
	p.skipNewlines()
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Statements = append(mod.Statements, stmt)
		}
		p.skipNewlines()
	}
	return mod
}

// ============ STATEMENTS ============

func (p *Parser) parseStatement() ast.Statement {
	var doc string
	for p.curIs(token.DocComment) {
		doc = p.curToken.Literal
		p.nextToken()
		p.skipNewlines()
	}

	switch p.curToken.Kind {
	case token.USE:
		return p.parseUseStmt()
	case token.VAR, token.CONST:
		return p.parseVarStmt()
	case token.PUB:
		return p.parseFunctionStmt(true, doc)
	case token.DEF:
		return p.parseFunctionStmt(false, doc)
	case token.STRUCT:
		return p.parseStructStmt()
	case token.ENUM:
		return p.parseEnumStmt()
	case token.TEST:
		return p.parseTestStmt()
	case token.IF, token.UNLESS:
		return p.parseConditionalStmt()
	case token.WHILE, token.UNTIL:
		return p.parseConditionLoop()
	case token.FOR:
		return p.parseForOfLoop()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.THROW:
		return p.parseThrowStmt()
	case token.TRY:
		return p.parseTryStmt()
	case token.MATCH:
		start := p.curToken.Pos
		m := p.parseMatchExpr().(*ast.MatchExpr)
		return &ast.MatchStmt{BaseNode: ast.NewBase(p.span(start)), Match: m}
	default:
		return p.parseExpressionStmt()
	}
}

func (p *Parser) parseUseStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'use'
	if !p.curIs(token.IDENT) {
		p.errorf("expected alias identifier after 'use'")
		return nil
	}
	alias := p.curToken.Literal
	p.nextToken()
	p.expect(token.ASSIGN)
	path := p.parseStringLiteralValue()
	return &ast.UseStmt{BaseNode: ast.NewBase(p.span(start)), Alias: alias, Path: path}
}

// parseStringLiteralValue reads a plain (non-interpolated) string used for
// module paths: InterpStart, at most one InterpSegment, InterpEnd.
func (p *Parser) parseStringLiteralValue() string {
	if !p.expect(token.InterpStart) {
		return ""
	}
	var text string
	if p.curIs(token.InterpSegment) {
		text = p.curToken.Literal
		p.nextToken()
	}
	p.expect(token.InterpEnd)
	return text
}

func (p *Parser) parseVarStmt() ast.Statement {
	start := p.curToken.Pos
	isConst := p.curIs(token.CONST)
	p.nextToken()
	if !p.curIs(token.IDENT) {
		p.errorf("expected identifier after var/const")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	var typeExpr ast.TypeExpr
	if p.curIs(token.COLON) {
		p.nextToken()
		typeExpr = p.parseTypeExpr()
	}

	p.expect(token.ASSIGN)
	value := p.parseExpression(precLowest)
	return &ast.VarStmt{BaseNode: ast.NewBase(p.span(start)), Name: name, Type: typeExpr, Value: value, IsConst: isConst}
}

func (p *Parser) parseFunctionStmt(public bool, doc string) ast.Statement {
	start := p.curToken.Pos
	if public {
		p.nextToken() // consume 'pub'
	}
	if !p.expect(token.DEF) {
		return nil
	}
	if !p.curIs(token.IDENT) {
		p.errorf("expected function name")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	nameLine := p.curToken.Pos.Line
	var typeParams []string
	if p.curIs(token.LBRACKET) {
		if p.curToken.Pos.Line != nameLine {
			p.errorf("generic parameter list must close on the same line as %s", name)
		}
		typeParams = p.parseTypeParamList()
	}

	p.expect(token.LPAREN)
	params := p.parseParamList()
	p.expect(token.RPAREN)

	var ret ast.TypeExpr
	if p.curIs(token.THIN_ARROW) {
		p.nextToken()
		ret = p.parseTypeExpr()
	} else {
		p.errorf("function %s must declare a return type", name)
	}

	p.skipNewlines()
	body := p.parseBlockUntilEnd()

	return &ast.FunctionStmt{
		BaseNode: ast.NewBase(p.span(start)), Name: name, Public: public,
		TypeParameters: typeParams, Params: params, ReturnType: ret, Body: body, DocComment: doc,
	}
}

func (p *Parser) parseTypeParamList() []string {
	open := p.curToken.Pos
	p.nextToken() // consume '['
	var names []string
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) {
			names = append(names, p.curToken.Literal)
			p.nextToken()
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	if p.curToken.Pos.Line != open.Line {
		p.errorf("generic parameter list must close on the same line it opened")
	}
	p.expect(token.RBRACKET)
	return names
}

func (p *Parser) parseParamList() []*ast.Param {
	var params []*ast.Param
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		start := p.curToken.Pos
		if !p.curIs(token.IDENT) {
			p.errorf("expected parameter name")
			break
		}
		name := p.curToken.Literal
		p.nextToken()

		var typeExpr ast.TypeExpr
		if p.curIs(token.COLON) {
			p.nextToken()
			typeExpr = p.parseTypeExpr()
		} else {
			p.diags.Add(diagnostics.Error, "parser",
				diagnostics.Span{Line: start.Line, Column: start.Column}, "parameter %s has no type annotation", name)
		}

		params = append(params, &ast.Param{Name: name, Type: typeExpr, Span: p.span(start)})
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	return params
}

func (p *Parser) parseStructStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'struct'
	if !p.curIs(token.IDENT) {
		p.errorf("expected struct name")
		return nil
	}
	name := p.curToken.Literal
	nameLine := p.curToken.Pos.Line
	p.nextToken()

	var typeParams []string
	if p.curIs(token.LBRACKET) {
		if p.curToken.Pos.Line != nameLine {
			p.errorf("generic parameter list must close on the same line as %s", name)
		}
		typeParams = p.parseTypeParamList()
	}

	p.skipNewlines()
	var fields []*ast.StructField
	for !p.curIs(token.END) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) {
			fstart := p.curToken.Pos
			fname := p.curToken.Literal
			p.nextToken()
			var ftype ast.TypeExpr
			if p.curIs(token.COLON) {
				p.nextToken()
				ftype = p.parseTypeExpr()
			}
			fields = append(fields, &ast.StructField{Name: fname, Type: ftype, Span: p.span(fstart)})
		}
		p.skipNewlines()
	}
	p.expect(token.END)
	return &ast.StructStmt{BaseNode: ast.NewBase(p.span(start)), Name: name, TypeParameters: typeParams, Fields: fields}
}

func (p *Parser) parseEnumStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'enum'
	if !p.curIs(token.IDENT) {
		p.errorf("expected enum name")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	p.skipNewlines()

	var variants []*ast.EnumVariant
	discriminant := 0
	for !p.curIs(token.END) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) {
			vstart := p.curToken.Pos
			vname := p.curToken.Literal
			p.nextToken()
			var fields []*ast.StructField
			if p.curIs(token.LPAREN) {
				p.nextToken()
				for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
					if p.curIs(token.IDENT) {
						ffstart := p.curToken.Pos
						fname := p.curToken.Literal
						p.nextToken()
						var ftype ast.TypeExpr
						if p.curIs(token.COLON) {
							p.nextToken()
							ftype = p.parseTypeExpr()
						}
						fields = append(fields, &ast.StructField{Name: fname, Type: ftype, Span: p.span(ffstart)})
					}
					if p.curIs(token.COMMA) {
						p.nextToken()
					}
				}
				p.expect(token.RPAREN)
			}
			variants = append(variants, &ast.EnumVariant{Name: vname, Discriminant: discriminant, Fields: fields, Span: p.span(vstart)})
			discriminant++
		}
		p.skipNewlines()
	}
	p.expect(token.END)
	return &ast.EnumStmt{BaseNode: ast.NewBase(p.span(start)), Name: name, Variants: variants}
}

func (p *Parser) parseTestStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'test'
	name := p.parseStringLiteralValue()
	p.skipNewlines()
	body := p.parseBlockUntilEnd()
	return &ast.TestStmt{BaseNode: ast.NewBase(p.span(start)), Name: name, Body: body}
}

func (p *Parser) parseConditionalStmt() ast.Statement {
	start := p.curToken.Pos
	negated := p.curIs(token.UNLESS)
	p.nextToken() // consume if/unless
	cond := p.parseExpression(precLowest)
	p.skipNewlines()

	then := p.parseBlockUntilEndOrElse()
	var els []ast.Statement
	if p.curIs(token.ELSE) {
		p.nextToken()
		p.skipNewlines()
		els = p.parseBlockUntilEnd()
	} else {
		p.expect(token.END)
	}
	return &ast.ConditionalStmt{BaseNode: ast.NewBase(p.span(start)), Condition: cond, Negated: negated, Then: then, Else: els}
}

func (p *Parser) parseConditionLoop() ast.Statement {
	start := p.curToken.Pos
	kind := ast.LoopWhile
	if p.curIs(token.UNTIL) {
		kind = ast.LoopUntil
	}
	p.nextToken()
	cond := p.parseExpression(precLowest)
	p.skipNewlines()
	body := p.parseBlockUntilEnd()
	return &ast.LoopStmt{BaseNode: ast.NewBase(p.span(start)), Kind: kind, Condition: cond, Body: body}
}

func (p *Parser) parseForOfLoop() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'for'
	if !p.curIs(token.IDENT) {
		p.errorf("expected loop variable name")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	p.expect(token.OF)
	iterable := p.parseExpression(precLowest)
	p.skipNewlines()
	body := p.parseBlockUntilEnd()
	return &ast.LoopStmt{BaseNode: ast.NewBase(p.span(start)), Kind: ast.LoopForOf, Variable: name, Iterable: iterable, Body: body}
}

func (p *Parser) parseReturnStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'return'
	var val ast.Expression
	if !p.curIs(token.NEWLINE) && !p.curIs(token.END) && !p.curIs(token.EOF) {
		val = p.parseExpression(precLowest)
	}
	return &ast.ReturnStmt{BaseNode: ast.NewBase(p.span(start)), Value: val}
}

func (p *Parser) parseThrowStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'throw'
	val := p.parseExpression(precLowest)
	return &ast.ThrowStmt{BaseNode: ast.NewBase(p.span(start)), Value: val}
}

func (p *Parser) parseTryStmt() ast.Statement {
	start := p.curToken.Pos
	p.nextToken() // consume 'try'
	p.skipNewlines()
	body := p.parseBlockUntilCatchOrEnd()
	var catchName string
	var catchBody []ast.Statement
	if p.curIs(token.CATCH) {
		p.nextToken()
		if p.curIs(token.IDENT) {
			catchName = p.curToken.Literal
			p.nextToken()
		}
		p.skipNewlines()
		catchBody = p.parseBlockUntilEnd()
	} else {
		p.expect(token.END)
	}
	return &ast.TryStmt{BaseNode: ast.NewBase(p.span(start)), Body: body, CatchName: catchName, CatchBody: catchBody}
}

func (p *Parser) parseExpressionStmt() ast.Statement {
	start := p.curToken.Pos
	expr := p.parseExpression(precLowest)
	return &ast.ExpressionStmt{BaseNode: ast.NewBase(p.span(start)), Expr: expr}
}

// parseBlockUntilEnd parses statements until `end`, consuming it.
func (p *Parser) parseBlockUntilEnd() []ast.Statement {
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.curIs(token.END) && !p.curIs(token.EOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	p.expect(token.END)
	return stmts
}

// parseBlockUntilEndOrElse parses statements until `end` or `else`, without
// consuming either.
func (p *Parser) parseBlockUntilEndOrElse() []ast.Statement {
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.curIs(token.END) && !p.curIs(token.ELSE) && !p.curIs(token.EOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	return stmts
}

func (p *Parser) parseBlockUntilCatchOrEnd() []ast.Statement {
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.curIs(token.END) && !p.curIs(token.CATCH) && !p.curIs(token.EOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	return stmts
}

// ============ EXPRESSIONS ============

func newBase(span diagnostics.Span) ast.BaseNode {
	return ast.NewBase(span)
}

func (p *Parser) parseExpression(minPrec int) ast.Expression {
	prefix, ok := p.prefixFns[p.curToken.Kind]
	if !ok {
		p.errorf("unexpected token %s in expression", p.curToken.Kind)
		p.nextToken()
		return nil
	}
	left := prefix()

	for !p.curIs(token.NEWLINE) && minPrec < p.curPrecedence() {
		infix, ok := p.infixFns[p.curToken.Kind]
		if !ok {
			return left
		}
		left = infix(left)
	}
	return left
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Kind]; ok {
		return prec
	}
	return precLowest
}

func (p *Parser) parseIdentifier() ast.Expression {
	start := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken()
	return &ast.Identifier{BaseNode: ast.NewBase(p.span(start)), Name: name}
}

func (p *Parser) parseIntLiteral() ast.Expression {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	v, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		p.errorf("invalid integer literal %q", lit)
	}
	p.nextToken()
	return &ast.Literal{BaseNode: ast.NewBase(p.span(start)), Kind: ast.LiteralInt, Int: v}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.errorf("invalid float literal %q", lit)
	}
	p.nextToken()
	return &ast.Literal{BaseNode: ast.NewBase(p.span(start)), Kind: ast.LiteralFloat, Float: v}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	start := p.curToken.Pos
	v := p.curToken.Literal == "true"
	p.nextToken()
	return &ast.Literal{BaseNode: ast.NewBase(p.span(start)), Kind: ast.LiteralBool, Bool: v}
}

func (p *Parser) parseNilLiteral() ast.Expression {
	start := p.curToken.Pos
	p.nextToken()
	return &ast.Literal{BaseNode: ast.NewBase(p.span(start)), Kind: ast.LiteralNil}
}

func (p *Parser) parseUnary() ast.Expression {
	start := p.curToken.Pos
	op := string(p.curToken.Kind)
	if p.curIs(token.NOT) {
		op = "not"
	}
	p.nextToken()
	operand := p.parseExpression(precUnary)
	return &ast.UnaryExpr{BaseNode: ast.NewBase(p.span(start)), Op: op, Operand: operand}
}

func (p *Parser) parseGrouping() ast.Expression {
	start := p.curToken.Pos
	p.nextToken() // consume '('
	inner := p.parseExpression(precLowest)
	p.expect(token.RPAREN)
	return &ast.GroupingExpr{BaseNode: ast.NewBase(p.span(start)), Inner: inner}
}

func (p *Parser) parseListLiteral() ast.Expression {
	start := p.curToken.Pos
	p.nextToken() // consume '['
	var elems []ast.Expression
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		elems = append(elems, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RBRACKET)
	return &ast.ListExpr{BaseNode: ast.NewBase(p.span(start)), Elements: elems}
}

func (p *Parser) parseDictLiteral() ast.Expression {
	start := p.curToken.Pos
	p.nextToken() // consume '{'
	var entries []ast.DictEntry
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		key := p.parseExpression(precLowest)
		p.expect(token.COLON)
		val := p.parseExpression(precLowest)
		entries = append(entries, ast.DictEntry{Key: key, Value: val})
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RBRACE)
	return &ast.DictExpr{BaseNode: ast.NewBase(p.span(start)), Entries: entries}
}

func (p *Parser) parseLambda() ast.Expression {
	start := p.curToken.Pos
	id := p.nextLambdaID
	p.nextLambdaID++

	p.nextToken() // consume '|'
	var params []*ast.Param
	for !p.curIs(token.PIPE) && !p.curIs(token.EOF) {
		pstart := p.curToken.Pos
		if !p.curIs(token.IDENT) {
			break
		}
		name := p.curToken.Literal
		p.nextToken()
		var ptype ast.TypeExpr
		if p.curIs(token.COLON) {
			p.nextToken()
			ptype = p.parseTypeExpr()
		}
		params = append(params, &ast.Param{Name: name, Type: ptype, Span: p.span(pstart)})
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.PIPE)
	p.expect(token.ARROW)

	var body []ast.Statement
	isBlock := false
	if p.curIs(token.NEWLINE) {
		isBlock = true
		p.skipNewlines()
		body = p.parseBlockUntilEnd()
	} else {
		expr := p.parseExpression(precAssignment)
		body = []ast.Statement{&ast.ExpressionStmt{BaseNode: ast.NewBase(expr.Span()), Expr: expr}}
	}

	return &ast.Lambda{BaseNode: ast.NewBase(p.span(start)), Id: id, Params: params, Body: body, IsBlock: isBlock}
}

// parseInterpolatedString consumes the InterpStart..InterpEnd token stream
// produced by the lexer and assembles an InterpolatedString expression.
func (p *Parser) parseInterpolatedString() ast.Expression {
	start := p.curToken.Pos
	p.nextToken() // consume InterpStart

	var parts []ast.InterpolatedStringPart
	for !p.curIs(token.InterpEnd) && !p.curIs(token.EOF) {
		switch p.curToken.Kind {
		case token.InterpSegment:
			parts = append(parts, ast.InterpolatedStringPart{Text: p.curToken.Literal})
			p.nextToken()
		case token.InterpExprStart:
			p.nextToken()
			expr := p.parseExpression(precLowest)
			parts = append(parts, ast.InterpolatedStringPart{IsExpr: true, Expr: expr})
			p.expect(token.InterpExprEnd)
		default:
			p.errorf("unexpected token %s in interpolated string", p.curToken.Kind)
			p.nextToken()
		}
	}
	p.expect(token.InterpEnd)

	if len(parts) == 1 && !parts[0].IsExpr {
		return &ast.InterpolatedString{BaseNode: ast.NewBase(p.span(start)), Parts: parts}
	}
	return &ast.InterpolatedString{BaseNode: ast.NewBase(p.span(start)), Parts: parts}
}

func (p *Parser) parseMatchExpr() ast.Expression {
	start := p.curToken.Pos
	p.nextToken() // consume 'match'
	scrutinee := p.parseExpression(precLowest)
	p.skipNewlines()

	var arms []ast.MatchArm
	for p.curIs(token.CASE) {
		astart := p.curToken.Pos
		p.nextToken()
		var pattern ast.Expression
		wildcard := false
		if p.curIs(token.IDENT) && p.curToken.Literal == "_" {
			wildcard = true
			p.nextToken()
		} else {
			pattern = p.parseExpression(precRange)
		}
		p.expect(token.ARROW)
		body := p.parseExpression(precLowest)
		arms = append(arms, ast.MatchArm{Pattern: pattern, IsWildcard: wildcard, Body: body, Span: p.span(astart)})
		p.skipNewlines()
	}
	p.expect(token.END)
	return &ast.MatchExpr{BaseNode: ast.NewBase(p.span(start)), Scrutinee: scrutinee, Arms: arms}
}

func (p *Parser) parseBinary(left ast.Expression) ast.Expression {
	start := left.Span()
	op := string(p.curToken.Kind)
	prec := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.BinaryExpr{BaseNode: ast.NewBase(diagnostics.Union(start, right.Span())), Left: left, Op: op, Right: right}
}

func (p *Parser) parseRange(left ast.Expression) ast.Expression {
	start := left.Span()
	inclusive := p.curIs(token.DOTDOTDOT)
	p.nextToken()
	right := p.parseExpression(precRange + 1)
	return &ast.RangeExpr{BaseNode: ast.NewBase(diagnostics.Union(start, right.Span())), Start: left, End: right, Inclusive: inclusive}
}

func (p *Parser) parseAssignment(left ast.Expression) ast.Expression {
	start := left.Span()
	p.nextToken()
	value := p.parseExpression(precAssignment)
	return &ast.AssignmentExpr{BaseNode: ast.NewBase(diagnostics.Union(start, value.Span())), Target: left, Value: value}
}

func (p *Parser) parseCall(left ast.Expression) ast.Expression {
	start := left.Span()
	p.nextToken() // consume '('
	var args []ast.Expression
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		args = append(args, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	endPos := p.curToken.Pos
	p.expect(token.RPAREN)
	end := diagnostics.Span{Line: endPos.Line, Column: endPos.Column}
	return &ast.CallExpr{BaseNode: ast.NewBase(diagnostics.Union(start, end)), Callee: left, Args: args}
}

// parseIndexOrGenericCall implements the speculative `[` lookahead: a
// generic-argument list preceding a call, or a plain index (spec §4.3).
func (p *Parser) parseIndexOrGenericCall(left ast.Expression) ast.Expression {
	start := left.Span()
	saveTok, saveLex := p.curToken, *p.l

	p.nextToken() // consume '['
	typeArgs, ok := p.tryParseTypeArgList()
	if ok && p.curIs(token.LPAREN) {
		call := p.parseCall(left).(*ast.CallExpr)
		call.TypeArguments = typeArgs
		return call
	}
	if ok && p.curIs(token.LBRACE) {
		lit := p.parseStructLiteral(left).(*ast.StructLiteral)
		lit.TypeArgs = typeArgs
		return lit
	}

	// Rewind: not a generic-argument list, treat as indexing.
	p.curToken = saveTok
	*p.l = saveLex
	p.peekToken = p.l.NextToken()

	p.nextToken() // consume '['
	index := p.parseExpression(precLowest)
	p.expect(token.RBRACKET)
	return &ast.IndexExpr{BaseNode: ast.NewBase(diagnostics.Union(start, index.Span())), Object: left, Index: index}
}

// tryParseTypeArgList attempts to parse `T, U]` after a consumed `[`. It
// never reports diagnostics — a failed attempt is silently abandoned by the
// caller's rewind.
func (p *Parser) tryParseTypeArgList() (types []ast.TypeExpr, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			types, ok = nil, false
		}
	}()
	for !p.curIs(token.RBRACKET) {
		if !p.curIs(token.IDENT) {
			return nil, false
		}
		types = append(types, p.parseTypeExpr())
		if p.curIs(token.COMMA) {
			p.nextToken()
		} else if !p.curIs(token.RBRACKET) {
			return nil, false
		}
	}
	p.nextToken() // consume ']'
	return types, true
}

func (p *Parser) parseMember(left ast.Expression) ast.Expression {
	start := left.Span()
	p.nextToken() // consume '.'
	if !p.curIs(token.IDENT) {
		p.errorf("expected property name after '.'")
		return left
	}
	name := p.curToken.Literal
	endPos := p.curToken.Pos
	p.nextToken()
	return &ast.MemberExpr{BaseNode: ast.NewBase(diagnostics.Union(start, diagnostics.Span{Line: endPos.Line, Column: endPos.Column})), Object: left, Property: name}
}

func (p *Parser) parseUnwrap(left ast.Expression) ast.Expression {
	start := left.Span()
	endPos := p.curToken.Pos
	p.nextToken() // consume '!'
	return &ast.UnwrapExpr{BaseNode: ast.NewBase(diagnostics.Union(start, diagnostics.Span{Line: endPos.Line, Column: endPos.Column})), Inner: left}
}

// parseStructLiteral parses the `Name{field: value, ...}` construction form
// (spec §4.6). left must be a bare identifier naming the struct.
func (p *Parser) parseStructLiteral(left ast.Expression) ast.Expression {
	start := left.Span()
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.errorf("struct literal requires a type name, got %T", left)
		return left
	}

	p.nextToken() // consume '{'
	p.skipNewlines()
	named := map[string]ast.Expression{}
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		if !p.curIs(token.IDENT) {
			p.errorf("expected field name in struct literal")
			break
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expect(token.COLON)
		named[name] = p.parseExpression(precLowest)
		p.skipNewlines()
		if p.curIs(token.COMMA) {
			p.nextToken()
			p.skipNewlines()
		}
	}
	endPos := p.curToken.Pos
	p.expect(token.RBRACE)
	end := diagnostics.Span{Line: endPos.Line, Column: endPos.Column}
	return &ast.StructLiteral{BaseNode: ast.NewBase(diagnostics.Union(start, end)), TypeName: ident.Name, Named: named}
}

// ============ TYPE EXPRESSIONS ============

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	start := p.curToken.Pos
	if !p.curIs(token.IDENT) {
		p.errorf("expected type name")
		return ast.NewNamedType(p.span(start), "Unknown", nil)
	}
	name := p.curToken.Literal
	p.nextToken()

	var t ast.TypeExpr
	switch name {
	case "List":
		p.expect(token.LBRACKET)
		elem := p.parseTypeExpr()
		p.expect(token.RBRACKET)
		t = &ast.ListTypeExpr{BaseNode: ast.NewBase(p.span(start)), Element: elem}
	case "Dict":
		p.expect(token.LBRACKET)
		if p.curIs(token.IDENT) && p.curToken.Literal == "String" {
			p.nextToken()
		}
		p.expect(token.COMMA)
		val := p.parseTypeExpr()
		p.expect(token.RBRACKET)
		t = &ast.DictTypeExpr{BaseNode: ast.NewBase(p.span(start)), Value: val}
	case "Func":
		p.expect(token.LPAREN)
		var params []ast.TypeExpr
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			params = append(params, p.parseTypeExpr())
			if p.curIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.expect(token.RPAREN)
		p.expect(token.THIN_ARROW)
		ret := p.parseTypeExpr()
		t = &ast.FunctionTypeExpr{BaseNode: ast.NewBase(p.span(start)), Params: params, Return: ret}
	default:
		var args []ast.TypeExpr
		if p.curIs(token.LBRACKET) {
			p.nextToken()
			for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
				args = append(args, p.parseTypeExpr())
				if p.curIs(token.COMMA) {
					p.nextToken()
				}
			}
			p.expect(token.RBRACKET)
		}
		t = ast.NewNamedType(p.span(start), name, args)
	}

	if p.curIs(token.QUESTION) {
		p.nextToken()
		t = &ast.OptionalTypeExpr{BaseNode: ast.NewBase(p.span(start)), Inner: t}
	}
	return t
}
