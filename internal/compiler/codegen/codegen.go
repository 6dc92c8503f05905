// Package codegen walks the expanded, resolved, type-checked tea AST and
// emits a vm.Program (spec §4.7): a GlobalResolver for top-level bindings, a
// FunctionResolver per function/lambda body (captures, then parameters,
// then locals, in slot order), and jump-patching for control flow.
package codegen

import (
	"fmt"
	"strings"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/checker"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/stdlib"
	"github.com/bentruyman/tea/internal/compiler/types"
	"github.com/bentruyman/tea/internal/compiler/vm"
)

// Captures is the resolver's lambda-id -> ordered-capture-names contract
// (spec §4.5), consumed here to lay out closure slots and capture pushes.
type Captures map[int][]string

// Generator holds all state accumulated while compiling one expanded module.
type Generator struct {
	chk           *checker.Checker
	captures      Captures
	stdlibAliases checker.StdlibAliases

	diags diagnostics.Bag

	program vm.Program

	globalSlots map[string]int
	structIndex map[string]int
	errorIndex  map[string]int // "EnumName.VariantName" -> Errors index

	// funcIndex holds the Functions index of every compiled non-generic
	// top-level function, keyed by its declared name.
	funcIndex map[string]int

	// specializations deduplicates generic function compiles:
	// function_specializations[name][mangled type args] -> Functions index
	// (spec §4.7).
	specializations map[string]map[string]int

	// env is the active function/lambda's local-slot environment; nil while
	// compiling top-level (main chunk) code.
	env *localEnv

	chunk *vm.Chunk // the chunk currently being appended to
}

type localEnv struct {
	parent *localEnv
	slots  map[string]int
	next   int
}

func newLocalEnv() *localEnv { return &localEnv{slots: map[string]int{}} }

func (e *localEnv) declare(name string) int {
	idx := e.next
	e.slots[name] = idx
	e.next++
	return idx
}

func (e *localEnv) lookup(name string) (int, bool) {
	idx, ok := e.slots[name]
	return idx, ok
}

// New creates a Generator. chk must have already completed Check(stmts).
func New(chk *checker.Checker, captures Captures, stdlibAliases checker.StdlibAliases) *Generator {
	return &Generator{
		chk:             chk,
		captures:        captures,
		stdlibAliases:   stdlibAliases,
		globalSlots:     map[string]int{},
		structIndex:     map[string]int{},
		errorIndex:      map[string]int{},
		funcIndex:       map[string]int{},
		specializations: map[string]map[string]int{},
	}
}

// Diagnostics returns every diagnostic collected while generating code.
func (g *Generator) Diagnostics() *diagnostics.Bag { return &g.diags }

// Generate compiles stmts into a complete vm.Program.
func (g *Generator) Generate(stmts []ast.Statement) *vm.Program {
	g.collectStructsAndErrors(stmts)
	g.collectGlobalSlots(stmts)
	g.program.Globals = make([]string, len(g.globalSlots))
	for name, idx := range g.globalSlots {
		g.program.Globals[idx] = name
	}

	g.chunk = &g.program.Chunk
	for _, stmt := range stmts {
		g.genTopLevel(stmt)
	}
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.Nil())})
	g.emit(vm.Instruction{Op: vm.OpReturn})

	return &g.program
}

func (g *Generator) collectStructsAndErrors(stmts []ast.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.StructStmt:
			fields, _ := g.chk.StructFieldOrder(s.Name)
			g.structIndex[s.Name] = len(g.program.Structs) + vm.BuiltinStructCount
			g.program.Structs = append(g.program.Structs, vm.StructTemplate{Name: s.Name, Fields: fields})
		case *ast.EnumStmt:
			for _, variant := range s.Variants {
				names := make([]string, len(variant.Fields))
				for i, f := range variant.Fields {
					names[i] = f.Name
				}
				key := s.Name + "." + variant.Name
				g.errorIndex[key] = len(g.program.Errors)
				g.program.Errors = append(g.program.Errors, vm.ErrorTemplate{
					ErrorName:   s.Name,
					VariantName: variant.Name,
					FieldNames:  names,
				})
			}
		}
	}
}

func (g *Generator) collectGlobalSlots(stmts []ast.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarStmt:
			g.globalSlots[s.Name] = len(g.globalSlots)
		case *ast.FunctionStmt:
			if !g.chk.IsGeneric(s.Name) {
				g.globalSlots[s.Name] = len(g.globalSlots)
			}
		}
	}
}

func (g *Generator) constant(v vm.Value) int {
	g.chunk.Constants = append(g.chunk.Constants, v)
	return len(g.chunk.Constants) - 1
}

func (g *Generator) emit(instr vm.Instruction) int {
	g.chunk.Instructions = append(g.chunk.Instructions, instr)
	return len(g.chunk.Instructions) - 1
}

func (g *Generator) here() int { return len(g.chunk.Instructions) }

func (g *Generator) patchJump(pos int) {
	g.chunk.Instructions[pos].A = g.here()
}

// genTopLevel compiles one top-level statement into the main chunk,
// installing functions into their global slots as it reaches them.
func (g *Generator) genTopLevel(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		if g.chk.IsGeneric(s.Name) {
			g.compileGenericSpecializations(s)
			return
		}
		idx := g.compileFunction(s, nil)
		g.funcIndex[s.Name] = idx
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewFunction(idx))})
		g.emit(vm.Instruction{Op: vm.OpSetGlobal, A: g.globalSlots[s.Name]})
		g.emit(vm.Instruction{Op: vm.OpPop})
	case *ast.StructStmt, *ast.EnumStmt, *ast.UseStmt:
		// Already accounted for (structs/errors collected; use fully
		// consumed by module expansion).
	default:
		g.genStmt(stmt)
	}
}

// compileGenericSpecializations compiles one Function entry per distinct
// type-argument binding the checker recorded for this generic function
// (spec §4.7's dedup contract), even though the instruction stream is
// identical for every instantiation: tea values are dynamically tagged, so
// specialization only changes static types, not runtime behavior.
func (g *Generator) compileGenericSpecializations(s *ast.FunctionStmt) {
	seen := map[string]bool{}
	for _, inst := range g.chk.FunctionInstances[s.Name] {
		key := mangleTypeArgs(inst.TypeArgs)
		if seen[key] {
			continue
		}
		seen[key] = true
		g.specializationIndex(s, key)
	}
}

// mangleTypeArgs renders the dedup/naming key for a generic specialization
// (spec §4.7: `name$g<type>$<type>`).
func mangleTypeArgs(args []types.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, "$")
}

// specializationIndex returns the Functions index for (s.Name, key),
// compiling it on first use.
func (g *Generator) specializationIndex(s *ast.FunctionStmt, key string) int {
	byName, ok := g.specializations[s.Name]
	if !ok {
		byName = map[string]int{}
		g.specializations[s.Name] = byName
	}
	if idx, ok := byName[key]; ok {
		return idx
	}
	mangled := s.Name
	if key != "" {
		mangled = s.Name + "$g" + key
	}
	idx := g.compileFunctionNamed(s, mangled)
	byName[key] = idx
	return idx
}

func (g *Generator) compileFunction(s *ast.FunctionStmt, captureNames []string) int {
	return g.compileFunctionBody(s.Name, s.Params, s.Body, captureNames)
}

func (g *Generator) compileFunctionNamed(s *ast.FunctionStmt, name string) int {
	return g.compileFunctionBody(name, s.Params, s.Body, nil)
}

func (g *Generator) compileFunctionBody(name string, params []*ast.Param, body []ast.Statement, captureNames []string) int {
	idx := len(g.program.Functions)
	g.program.Functions = append(g.program.Functions, vm.Function{Name: name, Arity: len(params)})

	outerEnv, outerChunk := g.env, g.chunk
	env := newLocalEnv()
	env.declare("@callee")
	for _, c := range captureNames {
		env.declare(c)
	}
	for _, p := range params {
		env.declare(p.Name)
	}
	g.env = env
	fnChunk := &vm.Chunk{}
	g.chunk = fnChunk

	for _, stmt := range body {
		g.genStmt(stmt)
	}
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.Nil())})
	g.emit(vm.Instruction{Op: vm.OpReturn})

	g.program.Functions[idx].Chunk = *fnChunk
	g.env, g.chunk = outerEnv, outerChunk
	return idx
}

func (g *Generator) genBlock(stmts []ast.Statement) {
	for _, stmt := range stmts {
		g.genStmt(stmt)
	}
}

func (g *Generator) genStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VarStmt:
		g.genExpr(s.Value)
		g.emitStore(s.Name)
		g.emit(vm.Instruction{Op: vm.OpPop})
	case *ast.FunctionStmt:
		// Nested named functions are compiled once (non-generic assumed)
		// and bound as a local, matching top-level function handling.
		idx := g.compileFunction(s, nil)
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewFunction(idx))})
		g.emitStore(s.Name)
		g.emit(vm.Instruction{Op: vm.OpPop})
	case *ast.StructStmt, *ast.EnumStmt, *ast.UseStmt:
	case *ast.TestStmt:
		g.genTestStmt(s)
	case *ast.ConditionalStmt:
		g.genConditional(s)
	case *ast.LoopStmt:
		g.genLoop(s)
	case *ast.ReturnStmt:
		if s.Value != nil {
			g.genExpr(s.Value)
		} else {
			g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.Nil())})
		}
		g.emit(vm.Instruction{Op: vm.OpReturn})
	case *ast.ThrowStmt:
		g.genExpr(s.Value)
		g.emit(vm.Instruction{Op: vm.OpThrow})
	case *ast.TryStmt:
		g.genTry(s)
	case *ast.ExpressionStmt:
		g.genExpr(s.Expr)
		g.emit(vm.Instruction{Op: vm.OpPop})
	case *ast.MatchStmt:
		g.genExpr(s.Match)
		g.emit(vm.Instruction{Op: vm.OpPop})
	}
}

// genTestStmt compiles a test block as its own Function entry, recorded in
// Program.Tests (spec §4.8's run_tests contract).
func (g *Generator) genTestStmt(s *ast.TestStmt) {
	idx := g.compileFunctionBody("test:"+s.Name, nil, s.Body, nil)
	g.program.Tests = append(g.program.Tests, vm.TestCase{Name: s.Name, Span: s.Span(), FunctionIndex: idx})
}

func (g *Generator) genConditional(s *ast.ConditionalStmt) {
	g.genExpr(s.Condition)
	if s.Negated {
		g.emit(vm.Instruction{Op: vm.OpNot})
	}
	elseJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})
	g.genBlock(s.Then)
	endJump := g.emit(vm.Instruction{Op: vm.OpJump})
	g.patchJump(elseJump)
	g.genBlock(s.Else)
	g.patchJump(endJump)
}

func (g *Generator) genLoop(s *ast.LoopStmt) {
	switch s.Kind {
	case ast.LoopForOf:
		g.genForOf(s)
	default:
		start := g.here()
		g.genExpr(s.Condition)
		if s.Kind == ast.LoopUntil {
			g.emit(vm.Instruction{Op: vm.OpNot})
		}
		exitJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})
		g.genBlock(s.Body)
		g.emit(vm.Instruction{Op: vm.OpJump, A: start})
		g.patchJump(exitJump)
	}
}

// genForOf lowers `for v of iterable ... end` into an index-driven while
// loop over a materialized list (spec §9's Open Question, resolved toward
// desugaring at codegen, per DESIGN.md).
func (g *Generator) genForOf(s *ast.LoopStmt) {
	g.genExpr(s.Iterable)
	listSlot := g.declareLocal("@forof_list")
	g.emitStore("@forof_list")
	g.emit(vm.Instruction{Op: vm.OpPop})

	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewInt(0))})
	idxSlot := g.declareLocal("@forof_idx")
	g.emitStore("@forof_idx")
	g.emit(vm.Instruction{Op: vm.OpPop})

	g.declareLocal(s.Variable)

	start := g.here()
	g.emitLoad(idxSlot)
	g.emitLoad(listSlot)
	g.emit(vm.Instruction{Op: vm.OpBuiltinCall, Str: string(stdlib.KindUtilLen), B: 1})
	g.emit(vm.Instruction{Op: vm.OpLess})
	exitJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})

	g.emitLoad(listSlot)
	g.emitLoad(idxSlot)
	g.emit(vm.Instruction{Op: vm.OpIndex})
	g.emitStoreSlot(s.Variable)
	g.emit(vm.Instruction{Op: vm.OpPop})

	g.genBlock(s.Body)

	g.emitLoad(idxSlot)
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewInt(1))})
	g.emit(vm.Instruction{Op: vm.OpAdd})
	g.emitStoreSlot("@forof_idx")
	g.emit(vm.Instruction{Op: vm.OpPop})
	g.emit(vm.Instruction{Op: vm.OpJump, A: start})
	g.patchJump(exitJump)
}

func (g *Generator) genTry(s *ast.TryStmt) {
	pushIdx := g.emit(vm.Instruction{Op: vm.OpPushCatch})
	g.genBlock(s.Body)
	g.emit(vm.Instruction{Op: vm.OpPopCatch})
	endJump := g.emit(vm.Instruction{Op: vm.OpJump})

	g.patchJump(pushIdx)
	if s.CatchName != "" {
		g.declareLocal(s.CatchName)
		g.emitStoreSlot(s.CatchName)
		g.emit(vm.Instruction{Op: vm.OpPop})
	} else {
		g.emit(vm.Instruction{Op: vm.OpPop})
	}
	g.genBlock(s.CatchBody)
	g.patchJump(endJump)
}

// declareLocal allocates a fresh local slot when compiling inside a
// function/lambda; at top level (g.env == nil) it instead allocates (or
// reuses) a global slot, since main-chunk "locals" are just top-level vars.
func (g *Generator) declareLocal(name string) int {
	if g.env != nil {
		return g.env.declare(name)
	}
	if idx, ok := g.globalSlots[name]; ok {
		return idx
	}
	idx := len(g.globalSlots)
	g.globalSlots[name] = idx
	g.program.Globals = append(g.program.Globals, name)
	return idx
}

func (g *Generator) emitLoad(slot int) {
	if g.env != nil {
		g.emit(vm.Instruction{Op: vm.OpGetLocal, A: slot})
	} else {
		g.emit(vm.Instruction{Op: vm.OpGetGlobal, A: slot})
	}
}

func (g *Generator) emitStore(name string) {
	g.emitStoreSlot(name)
}

func (g *Generator) emitStoreSlot(name string) {
	if g.env != nil {
		if idx, ok := g.env.lookup(name); ok {
			g.emit(vm.Instruction{Op: vm.OpSetLocal, A: idx})
			return
		}
	}
	idx := g.declareLocal(name)
	g.emit(vm.Instruction{Op: vm.OpSetGlobal, A: idx})
}

// resolveIdentifier emits the load sequence for a bare name: local, then
// global, matching the resolver's own scope precedence.
func (g *Generator) resolveIdentifier(name string) {
	if g.env != nil {
		if idx, ok := g.env.lookup(name); ok {
			g.emit(vm.Instruction{Op: vm.OpGetLocal, A: idx})
			return
		}
	}
	if idx, ok := g.globalSlots[name]; ok {
		g.emit(vm.Instruction{Op: vm.OpGetGlobal, A: idx})
		return
	}
	if idx, ok := g.funcIndex[name]; ok {
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewFunction(idx))})
		return
	}
	g.diags.AddSpanless(diagnostics.Error, "codegen", "unresolved identifier %q at code generation", name)
}

func (g *Generator) genExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
	case *ast.Identifier:
		g.resolveIdentifier(e.Name)
	case *ast.Literal:
		g.genLiteral(e)
	case *ast.InterpolatedString:
		g.genInterpolated(e)
	case *ast.ListExpr:
		for _, el := range e.Elements {
			g.genExpr(el)
		}
		g.emit(vm.Instruction{Op: vm.OpMakeList, A: len(e.Elements)})
	case *ast.DictExpr:
		for _, entry := range e.Entries {
			g.genExpr(entry.Key)
			g.genExpr(entry.Value)
		}
		g.emit(vm.Instruction{Op: vm.OpMakeDict, A: len(e.Entries)})
	case *ast.UnaryExpr:
		g.genExpr(e.Operand)
		switch e.Op {
		case "-":
			g.emit(vm.Instruction{Op: vm.OpNegate})
		case "not":
			g.emit(vm.Instruction{Op: vm.OpNot})
		}
	case *ast.BinaryExpr:
		g.genBinary(e)
	case *ast.CallExpr:
		g.genCall(e)
	case *ast.MemberExpr:
		g.genMember(e)
	case *ast.IndexExpr:
		g.genExpr(e.Object)
		g.genExpr(e.Index)
		g.emit(vm.Instruction{Op: vm.OpIndex})
	case *ast.RangeExpr:
		g.genRange(e)
	case *ast.Lambda:
		g.genLambda(e)
	case *ast.AssignmentExpr:
		g.genAssignment(e)
	case *ast.GroupingExpr:
		g.genExpr(e.Inner)
	case *ast.MatchExpr:
		g.genMatch(e)
	case *ast.UnwrapExpr:
		g.genExpr(e.Inner)
		g.emit(vm.Instruction{Op: vm.OpAssertNonNil})
	case *ast.StructLiteral:
		g.genStructLiteral(e)
	default:
		g.diags.Add(diagnostics.Error, "codegen", expr.Span(), "unsupported expression %T", expr)
	}
}

func (g *Generator) genLiteral(l *ast.Literal) {
	var v vm.Value
	switch l.Kind {
	case ast.LiteralInt:
		v = vm.NewInt(l.Int)
	case ast.LiteralFloat:
		v = vm.NewFloat(l.Float)
	case ast.LiteralString:
		v = vm.NewString(l.Str)
	case ast.LiteralBool:
		v = vm.NewBool(l.Bool)
	default:
		v = vm.Nil()
	}
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(v)})
}

func (g *Generator) genInterpolated(e *ast.InterpolatedString) {
	for _, part := range e.Parts {
		if !part.IsExpr {
			g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewString(part.Text))})
			continue
		}
		g.genExpr(part.Expr)
		g.emit(vm.Instruction{Op: vm.OpBuiltinCall, Str: string(stdlib.KindUtilToString), B: 1})
	}
	g.emit(vm.Instruction{Op: vm.OpConcatStrings, A: len(e.Parts)})
}

func (g *Generator) genBinary(e *ast.BinaryExpr) {
	switch e.Op {
	case "AND":
		g.genExpr(e.Left)
		falseJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})
		g.genExpr(e.Right)
		endJump := g.emit(vm.Instruction{Op: vm.OpJump})
		g.patchJump(falseJump)
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewBool(false))})
		g.patchJump(endJump)
		return
	case "OR":
		g.genExpr(e.Left)
		falseJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewBool(true))})
		endJump := g.emit(vm.Instruction{Op: vm.OpJump})
		g.patchJump(falseJump)
		g.genExpr(e.Right)
		g.patchJump(endJump)
		return
	case "??":
		g.genExpr(e.Left)
		nilJump := g.emit(vm.Instruction{Op: vm.OpJumpIfNil})
		endJump := g.emit(vm.Instruction{Op: vm.OpJump})
		g.patchJump(nilJump)
		g.emit(vm.Instruction{Op: vm.OpPop})
		g.genExpr(e.Right)
		g.patchJump(endJump)
		return
	}

	g.genExpr(e.Left)
	g.genExpr(e.Right)
	switch e.Op {
	case "+":
		g.emit(vm.Instruction{Op: vm.OpAdd})
	case "-":
		g.emit(vm.Instruction{Op: vm.OpSubtract})
	case "*":
		g.emit(vm.Instruction{Op: vm.OpMultiply})
	case "/":
		g.emit(vm.Instruction{Op: vm.OpDivide})
	case "%":
		g.emit(vm.Instruction{Op: vm.OpModulo})
	case "==":
		g.emit(vm.Instruction{Op: vm.OpEqual})
	case "!=":
		g.emit(vm.Instruction{Op: vm.OpNotEqual})
	case "<":
		g.emit(vm.Instruction{Op: vm.OpLess})
	case "<=":
		g.emit(vm.Instruction{Op: vm.OpLessEqual})
	case ">":
		g.emit(vm.Instruction{Op: vm.OpGreater})
	case ">=":
		g.emit(vm.Instruction{Op: vm.OpGreaterEqual})
	default:
		g.diags.Add(diagnostics.Error, "codegen", e.Span(), "unsupported binary operator %q", e.Op)
	}
}

func (g *Generator) genRange(e *ast.RangeExpr) {
	// Ranges desugar to a materialized List(Int) at codegen time (DESIGN.md
	// Open Question decision): emitted via the UtilRange builtin so the VM
	// need not special-case range construction.
	g.genExpr(e.Start)
	g.genExpr(e.End)
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewBool(e.Inclusive))})
	g.emit(vm.Instruction{Op: vm.OpBuiltinCall, Str: string(stdlib.KindUtilRange), B: 3})
}

// genAssignment compiles `target = value`. SetIndex expects the stack as
// [object, index, value] (it pops value, then index, then object), so the
// object/index must be pushed before the value, unlike a plain identifier
// store where the value is pushed first.
func (g *Generator) genAssignment(e *ast.AssignmentExpr) {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		g.genExpr(e.Value)
		g.emitStoreSlot(target.Name)
	case *ast.IndexExpr:
		g.genExpr(target.Object)
		g.genExpr(target.Index)
		g.genExpr(e.Value)
		g.emit(vm.Instruction{Op: vm.OpSetIndex})
	case *ast.MemberExpr:
		g.diags.Add(diagnostics.Error, "codegen", e.Span(), "assignment to struct fields is not supported")
	default:
		g.diags.Add(diagnostics.Error, "codegen", e.Span(), "invalid assignment target %T", e.Target)
	}
}

func (g *Generator) genMember(e *ast.MemberExpr) {
	if ident, ok := e.Object.(*ast.Identifier); ok {
		if _, ok := g.stdlibAliases[ident.Name]; ok {
			// A bare `alias.member` with no call (e.g. passed as a value) is
			// not a supported first-class reference; nothing meaningful to
			// push besides Nil, flagged for the author to call it instead.
			g.diags.Add(diagnostics.Error, "codegen", e.Span(), "stdlib member %q must be called", e.Property)
			g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.Nil())})
			return
		}
	}
	g.genExpr(e.Object)
	g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewString(e.Property))})
	g.emit(vm.Instruction{Op: vm.OpGetField})
}

func (g *Generator) genLambda(l *ast.Lambda) {
	captureNames := g.captures[l.Id]
	for _, name := range captureNames {
		g.resolveIdentifier(name)
	}

	idx := len(g.program.Functions)
	g.program.Functions = append(g.program.Functions, vm.Function{Name: fmt.Sprintf("lambda$%d", l.Id), Arity: len(l.Params)})

	outerEnv, outerChunk := g.env, g.chunk
	env := newLocalEnv()
	env.declare("@callee")
	for _, c := range captureNames {
		env.declare(c)
	}
	for _, p := range l.Params {
		env.declare(p.Name)
	}
	g.env = env
	fnChunk := &vm.Chunk{}
	g.chunk = fnChunk

	if l.IsBlock {
		g.genBlock(l.Body)
		g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.Nil())})
		g.emit(vm.Instruction{Op: vm.OpReturn})
	} else {
		for i, stmt := range l.Body {
			if i == len(l.Body)-1 {
				if es, ok := stmt.(*ast.ExpressionStmt); ok {
					g.genExpr(es.Expr)
					g.emit(vm.Instruction{Op: vm.OpReturn})
					continue
				}
			}
			g.genStmt(stmt)
		}
	}

	g.program.Functions[idx].Chunk = *fnChunk
	g.env, g.chunk = outerEnv, outerChunk

	g.emit(vm.Instruction{Op: vm.OpMakeClosure, A: idx, B: len(captureNames)})
}

func (g *Generator) genMatch(m *ast.MatchExpr) {
	g.genExpr(m.Scrutinee)
	tempSlot := g.declareLocal(fmt.Sprintf("@match_%d", m.Span().Line))
	g.emitStoreSlot(fmt.Sprintf("@match_%d", m.Span().Line))
	g.emit(vm.Instruction{Op: vm.OpPop})

	var endJumps []int
	for _, arm := range m.Arms {
		if arm.IsWildcard {
			g.genExpr(arm.Body)
			continue
		}
		g.emitLoad(tempSlot)
		g.genExpr(arm.Pattern)
		g.emit(vm.Instruction{Op: vm.OpEqual})
		nextJump := g.emit(vm.Instruction{Op: vm.OpJumpIfFalse})
		g.genExpr(arm.Body)
		endJumps = append(endJumps, g.emit(vm.Instruction{Op: vm.OpJump}))
		g.patchJump(nextJump)
	}
	for _, j := range endJumps {
		g.patchJump(j)
	}
}

func (g *Generator) genStructLiteral(e *ast.StructLiteral) {
	fieldOrder, _ := g.chk.StructFieldOrder(e.TypeName)
	idx, ok := g.structIndex[e.TypeName]
	if !ok {
		g.diags.Add(diagnostics.Error, "codegen", e.Span(), "unknown struct %q", e.TypeName)
		return
	}
	if len(e.Named) > 0 {
		for _, name := range fieldOrder {
			g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewString(name))})
			g.genExpr(e.Named[name])
		}
		g.emit(vm.Instruction{Op: vm.OpMakeStructNamed, A: idx})
		return
	}
	for _, arg := range e.Positional {
		g.genExpr(arg)
	}
	g.emit(vm.Instruction{Op: vm.OpMakeStructPositional, A: idx})
}

func (g *Generator) genCall(e *ast.CallExpr) {
	if member, ok := e.Callee.(*ast.MemberExpr); ok {
		if ident, ok := member.Object.(*ast.Identifier); ok {
			if g.chk.IsEnum(ident.Name) {
				key := ident.Name + "." + member.Property
				idx, ok := g.errorIndex[key]
				if !ok {
					g.diags.Add(diagnostics.Error, "codegen", e.Span(), "enum %q has no variant %q", ident.Name, member.Property)
					return
				}
				for _, a := range e.Args {
					g.genExpr(a)
				}
				g.emit(vm.Instruction{Op: vm.OpMakeError, A: idx, B: len(e.Args)})
				return
			}
			if modPath, ok := g.stdlibAliases[ident.Name]; ok {
				m, found := stdlib.Lookup(modPath, member.Property)
				if !found {
					g.diags.Add(diagnostics.Error, "codegen", e.Span(), "unknown stdlib member %q", member.Property)
					return
				}
				for _, a := range e.Args {
					g.genExpr(a)
				}
				if m.Kind == stdlib.KindPrint {
					g.emit(vm.Instruction{Op: vm.OpPrint})
					return
				}
				g.emit(vm.Instruction{Op: vm.OpBuiltinCall, Str: string(m.Kind), B: len(e.Args)})
				return
			}
		}
	}

	if name, ok := calleeName(e.Callee); ok {
		if name == "print" {
			for _, a := range e.Args {
				g.genExpr(a)
			}
			g.emit(vm.Instruction{Op: vm.OpPrint})
			return
		}
		if g.chk.IsStruct(name) {
			lit := &ast.StructLiteral{BaseNode: ast.NewBase(e.Span()), TypeName: name, Positional: e.Args}
			g.genStructLiteral(lit)
			return
		}
		if g.chk.IsGeneric(name) {
			key := ""
			if _, instance, ok := g.chk.FunctionCallAt(e.Span()); ok {
				key = mangleTypeArgs(instance.TypeArgs)
			}
			// Every distinct type-arg binding was already compiled up front
			// by compileGenericSpecializations; resolve the matching
			// Functions index by name+key here.
			if byName, ok := g.specializations[name]; ok {
				if idx, ok := byName[key]; ok {
					g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewFunction(idx))})
					for _, a := range e.Args {
						g.genExpr(a)
					}
					g.emit(vm.Instruction{Op: vm.OpCall, A: len(e.Args)})
					return
				}
			}
			g.diags.Add(diagnostics.Error, "codegen", e.Span(), "no compiled specialization for generic call to %q", name)
			return
		}
		if idx, ok := g.funcIndex[name]; ok {
			g.emit(vm.Instruction{Op: vm.OpConstant, A: g.constant(vm.NewFunction(idx))})
			for _, a := range e.Args {
				g.genExpr(a)
			}
			g.emit(vm.Instruction{Op: vm.OpCall, A: len(e.Args)})
			return
		}
	}

	g.genExpr(e.Callee)
	for _, a := range e.Args {
		g.genExpr(a)
	}
	g.emit(vm.Instruction{Op: vm.OpCall, A: len(e.Args)})
}

func calleeName(expr ast.Expression) (string, bool) {
	if ident, ok := expr.(*ast.Identifier); ok {
		return ident.Name, true
	}
	return "", false
}
