package checker

import (
	"testing"

	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/parser"
)

func checkSource(t *testing.T, src string, stdlibAliases StdlibAliases) *Checker {
	t.Helper()
	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Diagnostics().Entries())
	}
	if stdlibAliases == nil {
		stdlibAliases = StdlibAliases{}
	}
	c := New(stdlibAliases)
	c.Check(mod.Statements)
	return c
}

func TestCheckValidProgramProducesNoDiagnostics(t *testing.T) {
	c := checkSource(t, `def add(a: Int, b: Int) -> Int
  return a + b
end

def main() -> Int
  return add(1, 2)
end
`, nil)

	if c.Diagnostics().HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diagnostics().Entries())
	}
}

func TestCheckReportsReturnTypeMismatch(t *testing.T) {
	c := checkSource(t, `def main() -> Int
  return "not an int"
end
`, nil)

	if !c.Diagnostics().HasErrors() {
		t.Fatalf("expected a type mismatch diagnostic")
	}
}

func TestCheckReportsUnknownIdentifier(t *testing.T) {
	c := checkSource(t, `def main() -> Int
  return missing
end
`, nil)

	if !c.Diagnostics().HasErrors() {
		t.Fatalf("expected an unknown-identifier diagnostic")
	}
}

func TestCheckGenericFunctionCallRecordsInstance(t *testing.T) {
	c := checkSource(t, `def identity[T](x: T) -> T
  return x
end

def main() -> Int
  return identity(1)
end
`, nil)

	if c.Diagnostics().HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diagnostics().Entries())
	}

	instances := c.FunctionInstances["identity"]
	if len(instances) != 1 {
		t.Fatalf("expected 1 recorded instance of identity, got %d", len(instances))
	}
	if len(instances[0].TypeArgs) != 1 || instances[0].TypeArgs[0].String() != "Int" {
		t.Fatalf("expected identity specialized on Int, got %+v", instances[0].TypeArgs)
	}
}

func TestCheckStdlibMemberCallResolvesSignature(t *testing.T) {
	c := checkSource(t, `def main() -> Int
  io.print("hi")
  return 0
end
`, StdlibAliases{"io": "std.io"})

	if c.Diagnostics().HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diagnostics().Entries())
	}
}

func TestCheckUnknownStdlibMemberIsReported(t *testing.T) {
	c := checkSource(t, `def main() -> Int
  io.nope("hi")
  return 0
end
`, StdlibAliases{"io": "std.io"})

	if !c.Diagnostics().HasErrors() {
		t.Fatalf("expected an unknown stdlib member diagnostic")
	}
}
