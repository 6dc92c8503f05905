// Package module implements the module expander (spec §4.4): it resolves
// `use alias = "path"` imports, inlining non-stdlib modules and renaming
// their top-level symbols so that every identifier in the expanded AST
// either names a local symbol or a stdlib alias member.
package module

import (
	"path"
	"strings"

	"golang.org/x/mod/module"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/parser"
)

// Loader reads the contents of a tea source file by its resolved path. The
// driver (cmd/tea) supplies an os.ReadFile-backed implementation; tests
// supply an in-memory one.
type Loader interface {
	ReadFile(resolvedPath string) (string, error)
}

// StdlibImport records a `use` of a std.* or support.* module: the compiler
// never inlines these, it hands the alias to the code generator's stdlib
// registry lookup instead.
type StdlibImport struct {
	Alias      string
	ModulePath string
}

// Expander inlines non-stdlib imports into one flat statement list.
type Expander struct {
	loader  Loader
	diags   diagnostics.Bag
	loading map[string]bool            // cycle detection: currently-visited resolved paths
	cache   map[string]*expandedModule // resolved path -> already-expanded result

	Stdlib []StdlibImport
}

type expandedModule struct {
	stmts   []ast.Statement
	renames map[string]string // original top-level name -> __module_<alias>_name
}

// New creates an Expander that loads non-stdlib modules through loader.
func New(loader Loader) *Expander {
	return &Expander{
		loader:  loader,
		loading: map[string]bool{},
		cache:   map[string]*expandedModule{},
	}
}

// Diagnostics returns every diagnostic collected during expansion.
func (e *Expander) Diagnostics() *diagnostics.Bag {
	return &e.diags
}

// Expand resolves every `use` in mod (whose source file lives at
// entryPath), inlining non-stdlib imports ahead of mod's own statements and
// rewriting `alias.member` references to the renamed local symbol. Stdlib
// aliases are recorded on e.Stdlib and left untouched in the AST for the
// code generator to resolve.
func (e *Expander) Expand(entryPath string, mod *ast.Module) []ast.Statement {
	var inlined []ast.Statement
	var rest []ast.Statement
	aliasRenames := map[string]map[string]string{}

	for _, stmt := range mod.Statements {
		use, ok := stmt.(*ast.UseStmt)
		if !ok {
			rest = append(rest, stmt)
			continue
		}

		if isStdlibPath(use.Path) {
			e.Stdlib = append(e.Stdlib, StdlibImport{Alias: use.Alias, ModulePath: use.Path})
			continue
		}

		resolved, ok := e.resolvePath(entryPath, use.Path, use.Span())
		if !ok {
			continue
		}

		expanded := e.expandFile(resolved, use.Span())
		if expanded == nil {
			continue
		}
		inlined = append(inlined, expanded.stmts...)
		aliasRenames[use.Alias] = expanded.renames
	}

	rest = rewriteAliasMembers(rest, aliasRenames)
	return append(inlined, rest...)
}

func isStdlibPath(p string) bool {
	return strings.HasPrefix(p, "std.") || strings.HasPrefix(p, "support.")
}

// resolvePath resolves a non-stdlib import path against the importing
// file's directory, appending .tea when absent, and validates the path's
// syntax with golang.org/x/mod/module (rejecting parent-directory escapes
// and other characters an import path may not contain).
func (e *Expander) resolvePath(fromFile, rawPath string, span diagnostics.Span) (string, bool) {
	clean := rawPath
	if !strings.HasSuffix(clean, ".tea") {
		clean += ".tea"
	}
	dir := path.Dir(fromFile)
	resolved := path.Clean(path.Join(dir, clean))

	synthetic := "tea.module/" + strings.TrimSuffix(strings.TrimPrefix(resolved, "/"), ".tea")
	if err := module.CheckImportPath(synthetic); err != nil {
		e.diags.Add(diagnostics.Error, "module", span, "invalid import path %q: %s", rawPath, err)
		return "", false
	}
	return resolved, true
}

// expandFile loads, lexes, parses, and recursively expands the module at
// resolvedPath, then renames its top-level symbols to
// __module_<alias>_<name>. Returns nil on a load/parse/cycle failure
// (already reported).
func (e *Expander) expandFile(resolvedPath string, usageSpan diagnostics.Span) *expandedModule {
	if cached, ok := e.cache[resolvedPath]; ok {
		return cached
	}
	if e.loading[resolvedPath] {
		e.diags.Add(diagnostics.Error, "module", usageSpan, "import cycle detected at %q", resolvedPath)
		return nil
	}

	src, err := e.loader.ReadFile(resolvedPath)
	if err != nil {
		e.diags.Add(diagnostics.Error, "module", usageSpan, "cannot load module %q: %s", resolvedPath, err)
		return nil
	}

	e.loading[resolvedPath] = true
	defer delete(e.loading, resolvedPath)

	l := lexer.New(src)
	p := parser.New(l)
	childMod := p.ParseModule()
	e.diags.Extend(l.Diagnostics())
	e.diags.Extend(p.Diagnostics())

	alias := aliasFromPath(resolvedPath)
	stmts := e.Expand(resolvedPath, childMod)

	renames := map[string]string{}
	for _, stmt := range stmts {
		if name, ok := topLevelName(stmt); ok {
			renames[name] = "__module_" + alias + "_" + name
		}
	}
	renamed := renameTopLevel(stmts, renames)

	result := &expandedModule{stmts: renamed, renames: renames}
	e.cache[resolvedPath] = result
	return result
}

func aliasFromPath(resolvedPath string) string {
	base := path.Base(resolvedPath)
	base = strings.TrimSuffix(base, ".tea")
	return base
}

func topLevelName(stmt ast.Statement) (string, bool) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		return s.Name, true
	case *ast.StructStmt:
		return s.Name, true
	case *ast.EnumStmt:
		return s.Name, true
	case *ast.VarStmt:
		return s.Name, true
	default:
		return "", false
	}
}
