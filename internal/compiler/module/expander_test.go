package module

import (
	"fmt"
	"testing"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/parser"
)

type fakeLoader map[string]string

func (f fakeLoader) ReadFile(p string) (string, error) {
	if src, ok := f[p]; ok {
		return src, nil
	}
	return "", fmt.Errorf("no such file %q", p)
}

func parseModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	mod := p.ParseModule()
	if l.Diagnostics().HasErrors() || p.Diagnostics().HasErrors() {
		t.Fatalf("parse errors: %v %v", l.Diagnostics().Entries(), p.Diagnostics().Entries())
	}
	return mod
}

func TestExpandInlinesLocalModuleAndRenamesSymbols(t *testing.T) {
	loader := fakeLoader{
		"/proj/util.tea": "def helper() -> Int\n  return 1\nend\n",
	}
	entry := parseModule(t, `use u = "util"
def main() -> Int
  return u.helper()
end
`)

	e := New(loader)
	stmts := e.Expand("/proj/main.tea", entry)
	if e.Diagnostics().HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", e.Diagnostics().Entries())
	}

	var sawRenamedDef, sawMainCallingRenamed bool
	for _, stmt := range stmts {
		if fn, ok := stmt.(*ast.FunctionStmt); ok {
			if fn.Name == "__module_util_helper" {
				sawRenamedDef = true
			}
			if fn.Name == "main" {
				ret := fn.Body[0].(*ast.ReturnStmt)
				call := ret.Value.(*ast.CallExpr)
				if id, ok := call.Callee.(*ast.Identifier); ok && id.Name == "__module_util_helper" {
					sawMainCallingRenamed = true
				}
			}
		}
	}
	if !sawRenamedDef {
		t.Fatalf("expected renamed helper definition in expanded statements: %+v", stmts)
	}
	if !sawMainCallingRenamed {
		t.Fatalf("expected main's call to be rewritten to the renamed symbol")
	}
}

func TestExpandLeavesStdlibAliasIntact(t *testing.T) {
	entry := parseModule(t, `use fs = "std.fs"
def main() -> Int
  return 1
end
`)
	e := New(fakeLoader{})
	stmts := e.Expand("/proj/main.tea", entry)
	if len(e.Stdlib) != 1 || e.Stdlib[0].Alias != "fs" || e.Stdlib[0].ModulePath != "std.fs" {
		t.Fatalf("got Stdlib = %+v, want one std.fs entry", e.Stdlib)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1 (use statements are not inlined)", len(stmts))
	}
}

func TestExpandDetectsImportCycle(t *testing.T) {
	loader := fakeLoader{
		"/proj/a.tea": `use b = "b"
def a() -> Int
  return 1
end
`,
		"/proj/b.tea": `use a = "a"
def b() -> Int
  return 1
end
`,
	}
	entry := parseModule(t, `use a = "a"
def main() -> Int
  return 1
end
`)
	e := New(loader)
	e.Expand("/proj/main.tea", entry)
	if !e.Diagnostics().HasErrors() {
		t.Fatalf("expected a cycle diagnostic")
	}
}
