package parser

import (
	"testing"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/lexer"
)

func mustModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	p := New(lexer.New(src))
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Diagnostics().Entries())
	}
	return mod
}

func exprOf(t *testing.T, mod *ast.Module) ast.Expression {
	t.Helper()
	if len(mod.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(mod.Statements))
	}
	stmt, ok := mod.Statements[0].(*ast.ExpressionStmt)
	if !ok {
		t.Fatalf("expected ExpressionStmt, got %T", mod.Statements[0])
	}
	return stmt.Expr
}

func TestParseBinaryExpressionPrecedence(t *testing.T) {
	mod := mustModule(t, "1 + 2 * 3\n")
	expr := exprOf(t, mod)

	bin, ok := expr.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", expr)
	}
	if bin.Op != "+" {
		t.Fatalf("expected top-level op '+', got %q", bin.Op)
	}
	right, ok := bin.Right.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected right operand to be a BinaryExpr, got %T", bin.Right)
	}
	if right.Op != "*" {
		t.Fatalf("expected right op '*', got %q", right.Op)
	}
}

func TestParseChainedComparisonAndLogical(t *testing.T) {
	mod := mustModule(t, "a < b and c == d\n")
	expr := exprOf(t, mod)

	and, ok := expr.(*ast.BinaryExpr)
	if !ok || and.Op != "and" {
		t.Fatalf("expected top-level 'and', got %#v", expr)
	}
	if _, ok := and.Left.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected left of 'and' to be a comparison, got %T", and.Left)
	}
	if _, ok := and.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected right of 'and' to be a comparison, got %T", and.Right)
	}
}

func TestParseMemberCallIndexChain(t *testing.T) {
	mod := mustModule(t, "foo.bar(1, 2)[0]\n")
	expr := exprOf(t, mod)

	idx, ok := expr.(*ast.IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr, got %T", expr)
	}
	call, ok := idx.Object.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr under index, got %T", idx.Object)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 call args, got %d", len(call.Args))
	}
	member, ok := call.Callee.(*ast.MemberExpr)
	if !ok {
		t.Fatalf("expected MemberExpr callee, got %T", call.Callee)
	}
	if member.Property != "bar" {
		t.Fatalf("expected property 'bar', got %q", member.Property)
	}
}

func TestParsePlainIndexIsNotMistakenForGenericCall(t *testing.T) {
	mod := mustModule(t, "list[0]\n")
	expr := exprOf(t, mod)

	if _, ok := expr.(*ast.IndexExpr); !ok {
		t.Fatalf("expected IndexExpr, got %T", expr)
	}
}

func TestParseStructLiteral(t *testing.T) {
	mod := mustModule(t, "Point{x: 1, y: 2}\n")
	expr := exprOf(t, mod)

	lit, ok := expr.(*ast.StructLiteral)
	if !ok {
		t.Fatalf("expected StructLiteral, got %T", expr)
	}
	if lit.TypeName != "Point" {
		t.Fatalf("expected type name 'Point', got %q", lit.TypeName)
	}
	if len(lit.Named) != 2 {
		t.Fatalf("expected 2 named fields, got %d", len(lit.Named))
	}
	if _, ok := lit.Named["x"]; !ok {
		t.Fatalf("expected field 'x' in struct literal, got %+v", lit.Named)
	}
}

func TestParseGenericStructLiteral(t *testing.T) {
	mod := mustModule(t, "Box[Int]{value: 1}\n")
	expr := exprOf(t, mod)

	lit, ok := expr.(*ast.StructLiteral)
	if !ok {
		t.Fatalf("expected StructLiteral, got %T", expr)
	}
	if lit.TypeName != "Box" {
		t.Fatalf("expected type name 'Box', got %q", lit.TypeName)
	}
	if len(lit.TypeArgs) != 1 {
		t.Fatalf("expected 1 type argument, got %d", len(lit.TypeArgs))
	}
}

func TestParseGenericCallIsNotMistakenForIndex(t *testing.T) {
	mod := mustModule(t, "identity[Int](1)\n")
	expr := exprOf(t, mod)

	call, ok := expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr, got %T", expr)
	}
	if len(call.TypeArguments) != 1 {
		t.Fatalf("expected 1 explicit type argument, got %d", len(call.TypeArguments))
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	mod := mustModule(t, "a = b = 1\n")
	expr := exprOf(t, mod)

	outer, ok := expr.(*ast.AssignmentExpr)
	if !ok {
		t.Fatalf("expected AssignmentExpr, got %T", expr)
	}
	if _, ok := outer.Value.(*ast.AssignmentExpr); !ok {
		t.Fatalf("expected nested assignment on the right, got %T", outer.Value)
	}
}

func TestParseRangeExpression(t *testing.T) {
	mod := mustModule(t, "0..10\n")
	expr := exprOf(t, mod)

	rng, ok := expr.(*ast.RangeExpr)
	if !ok {
		t.Fatalf("expected RangeExpr, got %T", expr)
	}
	if rng.Inclusive {
		t.Fatalf("expected exclusive range for '..'")
	}
}

func TestParseUnwrapExpression(t *testing.T) {
	mod := mustModule(t, "maybe!\n")
	expr := exprOf(t, mod)

	if _, ok := expr.(*ast.UnwrapExpr); !ok {
		t.Fatalf("expected UnwrapExpr, got %T", expr)
	}
}

func TestParseFunctionWithReturnType(t *testing.T) {
	mod := mustModule(t, "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n")
	if len(mod.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(mod.Statements))
	}
	fn, ok := mod.Statements[0].(*ast.FunctionStmt)
	if !ok {
		t.Fatalf("expected FunctionStmt, got %T", mod.Statements[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
}
