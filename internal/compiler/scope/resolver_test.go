package scope

import (
	"testing"

	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/parser"
)

func mustParse(t *testing.T, src string) *parser.Parser {
	t.Helper()
	p := parser.New(lexer.New(src))
	return p
}

func TestResolveReportsUndefinedReference(t *testing.T) {
	p := mustParse(t, "def main() -> Int\n  return missing\nend\n")
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Diagnostics().Entries())
	}

	r := New(nil)
	r.Resolve(mod.Statements)
	if !r.Diagnostics().HasErrors() {
		t.Fatalf("expected a reference-before-definition diagnostic")
	}
}

func TestResolveAllowsMutualTopLevelRecursion(t *testing.T) {
	p := mustParse(t, `def isEven(n: Int) -> Bool
  if n == 0
    return true
  end
  return isOdd(n - 1)
end

def isOdd(n: Int) -> Bool
  if n == 0
    return false
  end
  return isEven(n - 1)
end
`)
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Diagnostics().Entries())
	}

	r := New(nil)
	r.Resolve(mod.Statements)
	if r.Diagnostics().HasErrors() {
		t.Fatalf("unexpected resolve errors: %v", r.Diagnostics().Entries())
	}
}

func TestResolveCapturesLambdaFreeVariables(t *testing.T) {
	p := mustParse(t, `def main() -> Int
  var total = 0
  var add = |x: Int| => total + x
  return add(1)
end
`)
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Diagnostics().Entries())
	}

	r := New(nil)
	r.Resolve(mod.Statements)
	if r.Diagnostics().HasErrors() {
		t.Fatalf("unexpected resolve errors: %v", r.Diagnostics().Entries())
	}

	var found bool
	for _, captures := range r.Captures {
		for _, name := range captures {
			if name == "total" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected lambda to capture %q, got %+v", "total", r.Captures)
	}
}

func TestResolveNestedLambdaPropagatesCaptureOutward(t *testing.T) {
	p := mustParse(t, `def main() -> Int
  var base = 10
  var outer = || => (|| => base)
  return base
end
`)
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors: %v", p.Diagnostics().Entries())
	}

	r := New(nil)
	r.Resolve(mod.Statements)

	capturesOf := func() int {
		count := 0
		for _, captures := range r.Captures {
			for _, name := range captures {
				if name == "base" {
					count++
				}
			}
		}
		return count
	}
	if capturesOf() < 2 {
		t.Fatalf("expected both the inner and outer lambda to capture %q, got %+v", "base", r.Captures)
	}
}
