package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/checker"
	"github.com/bentruyman/tea/internal/compiler/codegen"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/module"
	"github.com/bentruyman/tea/internal/compiler/parser"
	"github.com/bentruyman/tea/internal/compiler/scope"
	"github.com/bentruyman/tea/internal/compiler/vm"
)

// osLoader reads module files straight off disk: the driver's
// implementation of module.Loader.
type osLoader struct{}

func (osLoader) ReadFile(resolvedPath string) (string, error) {
	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// compileResult is everything a subcommand needs out of a compile: the
// VM-ready program, the stdlib aliases in scope (so the driver knows which
// builtins the program can reach), and every diagnostic collected along
// the way.
type compileResult struct {
	Module        *ast.Module
	Program       *vm.Program
	StdlibAliases checker.StdlibAliases
	Diags         diagnostics.Bag
}

// compileFile drives every in-repository phase of the pipeline in order
// (spec §5: lex, parse, expand, resolve, check, generate, strictly
// sequential). Each phase still runs to completion so the driver can
// report as many diagnostics as possible, but a phase with errors is the
// last one whose output reaches the next phase (spec §7).
func compileFile(path string) (*compileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	l := lexer.New(string(data))
	p := parser.New(l)
	mod := p.ParseModule()

	var diags diagnostics.Bag
	diags.Extend(l.Diagnostics())
	diags.Extend(p.Diagnostics())

	result := &compileResult{Module: mod}
	if diags.HasErrors() {
		result.Diags = diags
		return result, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	exp := module.New(osLoader{})
	stmts := exp.Expand(filepath.ToSlash(absPath), mod)
	diags.Extend(exp.Diagnostics())

	stdlibAliases := checker.StdlibAliases{}
	aliasNames := make([]string, 0, len(exp.Stdlib))
	for _, si := range exp.Stdlib {
		stdlibAliases[si.Alias] = si.ModulePath
		aliasNames = append(aliasNames, si.Alias)
	}

	res := scope.New(aliasNames)
	res.Resolve(stmts)
	diags.Extend(res.Diagnostics())

	if diags.HasErrors() {
		result.Diags = diags
		return result, nil
	}

	chk := checker.New(stdlibAliases)
	chk.Check(stmts)
	diags.Extend(chk.Diagnostics())

	if diags.HasErrors() {
		result.Diags = diags
		return result, nil
	}

	gen := codegen.New(chk, codegen.Captures(res.Captures), stdlibAliases)
	program := gen.Generate(stmts)
	diags.Extend(gen.Diagnostics())

	result.Program = program
	result.StdlibAliases = stdlibAliases
	result.Diags = diags
	return result, nil
}

// reportDiagnostics prints every collected diagnostic to stderr and
// reports whether any was an error (spec §7: "the driver reports all
// diagnostics before exiting").
func reportDiagnostics(diags *diagnostics.Bag) bool {
	for _, d := range diags.Entries() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if len(diags.Entries()) > 0 {
		fmt.Fprintln(os.Stderr, diags.Summary())
	}
	return diags.HasErrors()
}
