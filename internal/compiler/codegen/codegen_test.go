package codegen

import (
	"testing"

	"github.com/bentruyman/tea/internal/compiler/checker"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/parser"
	"github.com/bentruyman/tea/internal/compiler/scope"
	"github.com/bentruyman/tea/internal/compiler/vm"
)

// compileAndRun drives the same phase order cmd/tea's pipeline does, minus
// module expansion (none of these fixtures import anything), ending in an
// executed vm.Program: the most direct way to pin codegen's output without
// hand-assembling bytecode.
func compileAndRun(t *testing.T, src string) (vm.Value, *vm.VM) {
	t.Helper()

	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Diagnostics().Entries())
	}

	res := scope.New(nil)
	res.Resolve(mod.Statements)
	if res.Diagnostics().HasErrors() {
		t.Fatalf("unexpected resolver errors: %v", res.Diagnostics().Entries())
	}

	chk := checker.New(nil)
	chk.Check(mod.Statements)
	if chk.Diagnostics().HasErrors() {
		t.Fatalf("unexpected checker errors: %v", chk.Diagnostics().Entries())
	}

	gen := New(chk, Captures(res.Captures), nil)
	program := gen.Generate(mod.Statements)
	if gen.Diagnostics().HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", gen.Diagnostics().Entries())
	}

	v := vm.New(program)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	return result, v
}

func TestCodegenArithmeticAndFunctionCall(t *testing.T) {
	result, _ := compileAndRun(t, `def add(a: Int, b: Int) -> Int
  return a + b
end

def main() -> Int
  return add(2, 3)
end

main()
`)
	if result.Int != 5 {
		t.Fatalf("got %d, want 5", result.Int)
	}
}

func TestCodegenConditional(t *testing.T) {
	result, _ := compileAndRun(t, `def classify(n: Int) -> Int
  if n < 0
    return -1
  else
    return 1
  end
end

classify(-5)
`)
	if result.Int != -1 {
		t.Fatalf("got %d, want -1", result.Int)
	}
}

func TestCodegenWhileLoopAccumulates(t *testing.T) {
	result, _ := compileAndRun(t, `def sum(n: Int) -> Int
  var total = 0
  var i = 0
  while i < n
    total = total + i
    i = i + 1
  end
  return total
end

sum(5)
`)
	if result.Int != 10 {
		t.Fatalf("got %d, want 10 (0+1+2+3+4)", result.Int)
	}
}

func TestCodegenStructLiteralAndFieldAccess(t *testing.T) {
	result, _ := compileAndRun(t, `struct Point
  x: Int
  y: Int
end

def main() -> Int
  var p = Point{x: 3, y: 4}
  return p.x + p.y
end

main()
`)
	if result.Int != 7 {
		t.Fatalf("got %d, want 7", result.Int)
	}
}

func TestCodegenGenericFunctionSpecialization(t *testing.T) {
	result, _ := compileAndRun(t, `def identity[T](x: T) -> T
  return x
end

identity(42)
`)
	if result.Int != 42 {
		t.Fatalf("got %d, want 42", result.Int)
	}
}

func TestCodegenTryCatchRecoversFromThrow(t *testing.T) {
	result, _ := compileAndRun(t, `enum Boom
  Oops(code: Int)
end

def main() -> Int
  try
    throw Boom.Oops(1)
  catch e
    return 9
  end
  return 0
end

main()
`)
	if result.Int != 9 {
		t.Fatalf("got %d, want 9", result.Int)
	}
}
