// Package checker implements the tea type checker (spec §4.6): bidirectional
// inference over the expanded, resolved AST, generic unification and
// specialization recording, consumed downstream by the code generator.
package checker

import (
	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
	"github.com/bentruyman/tea/internal/compiler/stdlib"
	"github.com/bentruyman/tea/internal/compiler/types"
)

// FunctionInstance is one generic specialization of a function (spec §4.6).
type FunctionInstance struct {
	TypeArgs   []types.Type
	ParamTypes []types.Type
	ReturnType types.Type
}

// StructInstance is one generic specialization of a struct constructor.
type StructInstance struct {
	TypeArgs   []types.Type
	FieldTypes []types.Type
}

type functionCall struct {
	Name     string
	Instance FunctionInstance
}

type structCall struct {
	Name     string
	Instance StructInstance
}

// StdlibAliases maps a `use` alias bound to a stdlib/support module path
// (spec §4.4); the checker and code generator both need it to tell a
// `alias.member(...)` builtin call apart from ordinary field access.
type StdlibAliases map[string]string

// functionSig is the checked signature of a declared function.
type functionSig struct {
	decl       *ast.FunctionStmt
	typeParams []string
	paramTypes []types.Type
	returnType types.Type
}

type structDecl struct {
	decl       *ast.StructStmt
	typeParams []string
	fieldTypes map[string]types.Type
	fieldOrder []string
}

type enumDecl struct {
	decl     *ast.EnumStmt
	variants map[string]*ast.EnumVariant
}

// Checker holds all state accumulated while type-checking one expanded
// module.
type Checker struct {
	diags diagnostics.Bag

	stdlibAliases StdlibAliases

	functions map[string]*functionSig
	structs   map[string]*structDecl
	enums     map[string]*enumDecl

	globals map[string]types.Type

	// functionCalls and structCalls are keyed by call-site span (spec
	// §4.6's explicit "span equality" contract); read through
	// FunctionCallAt/StructCallAt.
	functionCalls        map[diagnostics.Span]functionCall
	structCalls          map[diagnostics.Span]structCall
	FunctionInstances    map[string][]FunctionInstance
	ArgumentExpectations map[diagnostics.Span]types.Type

	// scopes is a stack of local variable type environments; scopes[0] is
	// never pushed here (globals live in r.globals instead).
	scopes []map[string]types.Type

	currentReturn *types.Type
}

// New creates a Checker. globalVars carries top-level var/const bindings
// whose type must be inferred before function bodies (forward) reference
// them; pass nil and they will be filled in by a first pass over stmts.
func New(stdlibAliases StdlibAliases) *Checker {
	return &Checker{
		stdlibAliases:        stdlibAliases,
		functions:            map[string]*functionSig{},
		structs:              map[string]*structDecl{},
		enums:                map[string]*enumDecl{},
		globals:              map[string]types.Type{},
		functionCalls:        map[diagnostics.Span]functionCall{},
		structCalls:          map[diagnostics.Span]structCall{},
		FunctionInstances:    map[string][]FunctionInstance{},
		ArgumentExpectations: map[diagnostics.Span]types.Type{},
	}
}

// Diagnostics returns every diagnostic collected while checking.
func (c *Checker) Diagnostics() *diagnostics.Bag { return &c.diags }

// FunctionCallAt returns the recorded generic specialization for a call-site
// span, if the callee had type parameters (spec §4.6's codegen contract).
func (c *Checker) FunctionCallAt(span diagnostics.Span) (name string, instance FunctionInstance, ok bool) {
	fc, ok := c.functionCalls[span]
	if !ok {
		return "", FunctionInstance{}, false
	}
	return fc.Name, fc.Instance, true
}

// StructCallAt returns the recorded generic specialization for a struct
// literal/constructor call-site span, if the struct declares type
// parameters.
func (c *Checker) StructCallAt(span diagnostics.Span) (name string, instance StructInstance, ok bool) {
	sc, ok := c.structCalls[span]
	if !ok {
		return "", StructInstance{}, false
	}
	return sc.Name, sc.Instance, true
}

// IsGeneric reports whether name is a declared generic function.
func (c *Checker) IsGeneric(name string) bool {
	sig, ok := c.functions[name]
	return ok && len(sig.typeParams) > 0
}

// IsStructGeneric reports whether name is a declared generic struct.
func (c *Checker) IsStructGeneric(name string) bool {
	sd, ok := c.structs[name]
	return ok && len(sd.typeParams) > 0
}

// StructFieldOrder returns the declared field order for a struct, for the
// code generator's template construction.
func (c *Checker) StructFieldOrder(name string) ([]string, bool) {
	sd, ok := c.structs[name]
	if !ok {
		return nil, false
	}
	return sd.fieldOrder, true
}

// IsStruct reports whether name is a declared struct (vs. function/other).
func (c *Checker) IsStruct(name string) bool {
	_, ok := c.structs[name]
	return ok
}

// IsEnum reports whether name is a declared enum, so the code generator can
// tell `EnumName.Variant(...)` apart from a function or stdlib alias call.
func (c *Checker) IsEnum(name string) bool {
	_, ok := c.enums[name]
	return ok
}

// EnumVariantFields returns the declared field names of one enum variant,
// in declaration order, for the code generator's OpMakeError argument count.
func (c *Checker) EnumVariantFields(enumName, variantName string) ([]string, bool) {
	ed, ok := c.enums[enumName]
	if !ok {
		return nil, false
	}
	v, ok := ed.variants[variantName]
	if !ok {
		return nil, false
	}
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names, true
}

// FunctionArity returns the declared parameter count of a non-generic
// function.
func (c *Checker) FunctionArity(name string) (int, bool) {
	sig, ok := c.functions[name]
	if !ok {
		return 0, false
	}
	return len(sig.paramTypes), true
}

// GlobalType returns the checked type of a top-level var/const or function,
// for the code generator's global-slot bookkeeping.
func (c *Checker) GlobalType(name string) (types.Type, bool) {
	t, ok := c.globals[name]
	return t, ok
}

// Check runs the two-pass type checker over stmts: first a skeleton pass
// collecting every top-level struct/enum/function signature (so mutual and
// forward references type-check), then a full body pass.
func (c *Checker) Check(stmts []ast.Statement) {
	for _, stmt := range stmts {
		c.collectSkeleton(stmt)
	}
	for _, stmt := range stmts {
		c.resolveSkeleton(stmt)
	}
	for _, stmt := range stmts {
		c.checkStmt(stmt)
	}
}

func (c *Checker) collectSkeleton(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		c.functions[s.Name] = &functionSig{decl: s, typeParams: s.TypeParameters}
	case *ast.StructStmt:
		c.structs[s.Name] = &structDecl{decl: s, typeParams: s.TypeParameters, fieldTypes: map[string]types.Type{}}
	case *ast.EnumStmt:
		variants := map[string]*ast.EnumVariant{}
		for _, v := range s.Variants {
			variants[v.Name] = v
		}
		c.enums[s.Name] = &enumDecl{decl: s, variants: variants}
	}
}

// resolveSkeleton fills in param/field types now that every struct/enum name
// is known, so `struct Node ... next: Node? ... end` resolves cleanly.
func (c *Checker) resolveSkeleton(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		sig := c.functions[s.Name]
		sig.paramTypes = make([]types.Type, len(s.Params))
		for i, p := range s.Params {
			sig.paramTypes[i] = c.resolveTypeExpr(p.Type)
		}
		if s.ReturnType != nil {
			sig.returnType = c.resolveTypeExpr(s.ReturnType)
		} else {
			c.diags.Add(diagnostics.Error, "checker", s.Span(), "function %q must declare a return type", s.Name)
			sig.returnType = types.Unknown()
		}
	case *ast.StructStmt:
		sd := c.structs[s.Name]
		for _, f := range s.Fields {
			sd.fieldOrder = append(sd.fieldOrder, f.Name)
			sd.fieldTypes[f.Name] = c.resolveTypeExpr(f.Type)
		}
	}
}

// resolveTypeExpr turns a parsed TypeExpr into a checked Type, treating any
// unrecognized name as a generic parameter if it's a bare, lowercase-free
// single-letter-style name already declared as one; otherwise a struct/enum
// reference (resolved lazily since forward references are legal).
func (c *Checker) resolveTypeExpr(t ast.TypeExpr) types.Type {
	switch te := t.(type) {
	case nil:
		return types.Unknown()
	case *ast.NamedTypeExpr:
		return c.resolveNamedType(te)
	case *ast.OptionalTypeExpr:
		return types.Optional(c.resolveTypeExpr(te.Inner))
	case *ast.ListTypeExpr:
		return types.List(c.resolveTypeExpr(te.Element))
	case *ast.DictTypeExpr:
		return types.Dict(c.resolveTypeExpr(te.Value))
	case *ast.FunctionTypeExpr:
		params := make([]types.Type, len(te.Params))
		for i, p := range te.Params {
			params[i] = c.resolveTypeExpr(p)
		}
		return types.Function(params, c.resolveTypeExpr(te.Return))
	default:
		return types.Unknown()
	}
}

func (c *Checker) resolveNamedType(te *ast.NamedTypeExpr) types.Type {
	switch te.Name {
	case "Int":
		return types.Simple(types.Int)
	case "Float":
		return types.Simple(types.Float)
	case "String":
		return types.Simple(types.String)
	case "Bool":
		return types.Simple(types.Bool)
	case "Nil":
		return types.Simple(types.Nil)
	}
	if _, ok := c.structs[te.Name]; ok {
		args := make([]types.Type, len(te.Args))
		for i, a := range te.Args {
			args[i] = c.resolveTypeExpr(a)
		}
		return types.Struct(te.Name, args)
	}
	if _, ok := c.enums[te.Name]; ok {
		return types.Enum(te.Name)
	}
	// Unresolved bare name: treat as a generic type parameter. The caller
	// (a generic function/struct declaration) is responsible for only using
	// names it actually declared; an unbound one surfaces as "Unknown" when
	// unified against nothing.
	return types.GenericParameter(te.Name)
}

func (c *Checker) pushScope() { c.scopes = append(c.scopes, map[string]types.Type{}) }
func (c *Checker) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Checker) declareLocal(name string, t types.Type) {
	if len(c.scopes) == 0 {
		c.globals[name] = t
		return
	}
	c.scopes[len(c.scopes)-1][name] = t
}

func (c *Checker) lookup(name string) (types.Type, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, true
		}
	}
	if t, ok := c.globals[name]; ok {
		return t, true
	}
	if sig, ok := c.functions[name]; ok {
		return types.Function(sig.paramTypes, sig.returnType), true
	}
	return types.Type{}, false
}

// ensureCompatible reports a diagnostic when actual cannot satisfy expected;
// Unknown is compatible with anything (inference fallback).
func (c *Checker) ensureCompatible(span diagnostics.Span, expected, actual types.Type) {
	if expected.Kind == types.UnknownKind || actual.Kind == types.UnknownKind {
		return
	}
	if expected.Kind == types.OptionalKind && actual.Kind != types.OptionalKind {
		c.ensureCompatible(span, *expected.Elem, actual)
		return
	}
	if !types.Equal(expected, actual) {
		c.diags.Add(diagnostics.Error, "checker", span, "expected %s, got %s", expected.String(), actual.String())
	}
}

func (c *Checker) checkStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.UseStmt:
		// Fully handled by expansion; nothing left to check.
	case *ast.VarStmt:
		vt := c.infer(s.Value)
		if s.Type != nil {
			declared := c.resolveTypeExpr(s.Type)
			c.ensureCompatible(s.Span(), declared, vt)
			vt = declared
		}
		c.declareLocal(s.Name, vt)
	case *ast.FunctionStmt:
		c.checkFunctionBody(s)
	case *ast.StructStmt, *ast.EnumStmt:
		// Already fully handled by the skeleton passes.
	case *ast.TestStmt:
		c.pushScope()
		for _, st := range s.Body {
			c.checkStmt(st)
		}
		c.popScope()
	case *ast.ConditionalStmt:
		cond := c.infer(s.Condition)
		if cond.Kind != types.Bool && cond.Kind != types.UnknownKind {
			c.diags.Add(diagnostics.Error, "checker", s.Condition.Span(), "condition must be Bool, got %s", cond.String())
		}
		c.pushScope()
		for _, st := range s.Then {
			c.checkStmt(st)
		}
		c.popScope()
		c.pushScope()
		for _, st := range s.Else {
			c.checkStmt(st)
		}
		c.popScope()
	case *ast.LoopStmt:
		c.pushScope()
		switch s.Kind {
		case ast.LoopForOf:
			iterable := c.infer(s.Iterable)
			elem := types.Unknown()
			switch iterable.Kind {
			case types.ListKind:
				elem = *iterable.Elem
			case types.DictKind:
				elem = *iterable.Elem
			}
			c.declareLocal(s.Variable, elem)
		default:
			c.infer(s.Condition)
		}
		for _, st := range s.Body {
			c.checkStmt(st)
		}
		c.popScope()
	case *ast.ReturnStmt:
		rt := types.Simple(types.Nil)
		if s.Value != nil {
			rt = c.infer(s.Value)
		}
		if c.currentReturn != nil {
			c.ensureCompatible(s.Span(), *c.currentReturn, rt)
		}
	case *ast.ThrowStmt:
		c.infer(s.Value)
	case *ast.TryStmt:
		c.pushScope()
		for _, st := range s.Body {
			c.checkStmt(st)
		}
		c.popScope()
		c.pushScope()
		if s.CatchName != "" {
			c.declareLocal(s.CatchName, types.Struct("Error", nil))
		}
		for _, st := range s.CatchBody {
			c.checkStmt(st)
		}
		c.popScope()
	case *ast.ExpressionStmt:
		c.infer(s.Expr)
	case *ast.MatchStmt:
		c.infer(s.Match)
	}
}

func (c *Checker) checkFunctionBody(s *ast.FunctionStmt) {
	sig := c.functions[s.Name]
	prevReturn := c.currentReturn
	ret := sig.returnType
	c.currentReturn = &ret
	c.pushScope()
	for i, p := range s.Params {
		c.declareLocal(p.Name, sig.paramTypes[i])
	}
	for _, st := range s.Body {
		c.checkStmt(st)
	}
	c.popScope()
	c.currentReturn = prevReturn
}

// infer yields expr's Type, recording generic specialization and argument
// expectation metadata as it walks call sites (spec §4.6).
func (c *Checker) infer(expr ast.Expression) types.Type {
	switch e := expr.(type) {
	case nil:
		return types.Unknown()
	case *ast.Identifier:
		if t, ok := c.lookup(e.Name); ok {
			return t
		}
		c.diags.Add(diagnostics.Error, "checker", e.Span(), "unknown identifier %q", e.Name)
		return types.Unknown()
	case *ast.Literal:
		return c.inferLiteral(e)
	case *ast.InterpolatedString:
		for _, part := range e.Parts {
			if part.IsExpr {
				c.infer(part.Expr)
			}
		}
		return types.Simple(types.String)
	case *ast.ListExpr:
		elem := types.Unknown()
		for _, el := range e.Elements {
			elem = types.Join(elem, c.infer(el))
		}
		return types.List(elem)
	case *ast.DictExpr:
		val := types.Unknown()
		for _, entry := range e.Entries {
			c.infer(entry.Key)
			val = types.Join(val, c.infer(entry.Value))
		}
		return types.Dict(val)
	case *ast.UnaryExpr:
		return c.inferUnary(e)
	case *ast.BinaryExpr:
		return c.inferBinary(e)
	case *ast.CallExpr:
		return c.inferCall(e)
	case *ast.MemberExpr:
		return c.inferMember(e)
	case *ast.IndexExpr:
		return c.inferIndex(e)
	case *ast.RangeExpr:
		c.infer(e.Start)
		c.infer(e.End)
		return types.List(types.Simple(types.Int))
	case *ast.Lambda:
		return c.inferLambda(e)
	case *ast.AssignmentExpr:
		vt := c.infer(e.Value)
		tt := c.infer(e.Target)
		c.ensureCompatible(e.Span(), tt, vt)
		return vt
	case *ast.GroupingExpr:
		return c.infer(e.Inner)
	case *ast.MatchExpr:
		return c.inferMatch(e)
	case *ast.UnwrapExpr:
		inner := c.infer(e.Inner)
		if inner.Kind != types.OptionalKind {
			c.diags.Add(diagnostics.Error, "checker", e.Span(), "unwrap requires an Optional, got %s", inner.String())
			return types.Unknown()
		}
		return *inner.Elem
	case *ast.StructLiteral:
		return c.inferStructLiteral(e)
	default:
		return types.Unknown()
	}
}

func (c *Checker) inferLiteral(l *ast.Literal) types.Type {
	switch l.Kind {
	case ast.LiteralInt:
		return types.Simple(types.Int)
	case ast.LiteralFloat:
		return types.Simple(types.Float)
	case ast.LiteralString:
		return types.Simple(types.String)
	case ast.LiteralBool:
		return types.Simple(types.Bool)
	default:
		return types.Simple(types.Nil)
	}
}

func (c *Checker) inferUnary(e *ast.UnaryExpr) types.Type {
	t := c.infer(e.Operand)
	switch e.Op {
	case "not":
		return types.Simple(types.Bool)
	default:
		return t
	}
}

func (c *Checker) inferBinary(e *ast.BinaryExpr) types.Type {
	lt := c.infer(e.Left)
	rt := c.infer(e.Right)
	switch e.Op {
	case "AND", "OR":
		return types.Simple(types.Bool)
	case "==", "!=":
		c.ensureCompatible(e.Span(), lt, rt)
		return types.Simple(types.Bool)
	case "<", "<=", ">", ">=":
		return types.Simple(types.Bool)
	case "??":
		if lt.Kind == types.OptionalKind {
			return types.Join(*lt.Elem, rt)
		}
		return lt
	case "+":
		if lt.Kind == types.String || rt.Kind == types.String {
			return types.Simple(types.String)
		}
		if lt.Kind == types.ListKind {
			return lt
		}
		return arithmeticPromote(lt, rt)
	default:
		return arithmeticPromote(lt, rt)
	}
}

// arithmeticPromote implements spec §4.6's "if either operand is Float,
// result is Float; otherwise Int" rule.
func arithmeticPromote(a, b types.Type) types.Type {
	if a.Kind == types.Float || b.Kind == types.Float {
		return types.Simple(types.Float)
	}
	return types.Simple(types.Int)
}

func (c *Checker) inferLambda(l *ast.Lambda) types.Type {
	c.pushScope()
	params := make([]types.Type, len(l.Params))
	for i, p := range l.Params {
		params[i] = c.resolveTypeExpr(p.Type)
		c.declareLocal(p.Name, params[i])
	}
	ret := types.Unknown()
	if l.ReturnType != nil {
		ret = c.resolveTypeExpr(l.ReturnType)
	}
	prevReturn := c.currentReturn
	c.currentReturn = &ret
	for _, st := range l.Body {
		c.checkStmt(st)
		if !l.IsBlock {
			if es, ok := st.(*ast.ExpressionStmt); ok {
				ret = c.infer(es.Expr)
			}
		}
	}
	c.currentReturn = prevReturn
	c.popScope()
	return types.Function(params, ret)
}

func (c *Checker) inferMatch(m *ast.MatchExpr) types.Type {
	c.infer(m.Scrutinee)
	result := types.Unknown()
	for _, arm := range m.Arms {
		if !arm.IsWildcard {
			c.infer(arm.Pattern)
		}
		result = types.Join(result, c.infer(arm.Body))
	}
	return result
}

func (c *Checker) inferIndex(e *ast.IndexExpr) types.Type {
	obj := c.infer(e.Object)
	c.infer(e.Index)
	switch obj.Kind {
	case types.ListKind:
		return *obj.Elem
	case types.DictKind:
		return *obj.Elem
	case types.String:
		return types.Simple(types.String)
	default:
		return types.Unknown()
	}
}

// inferMember resolves `object.property`: a stdlib alias member becomes a
// builtin signature's return type; otherwise it's a struct/error field
// lookup.
func (c *Checker) inferMember(e *ast.MemberExpr) types.Type {
	if ident, ok := e.Object.(*ast.Identifier); ok {
		if modPath, ok := c.stdlibAliases[ident.Name]; ok {
			if member, ok := stdlib.Lookup(modPath, e.Property); ok {
				return member.Signature
			}
			c.diags.Add(diagnostics.Error, "checker", e.Span(), "unknown stdlib member %q on %q", e.Property, modPath)
			return types.Unknown()
		}
	}
	obj := c.infer(e.Object)
	if obj.Kind == types.StructKind {
		if sd, ok := c.structs[obj.Name]; ok {
			if ft, ok := sd.fieldTypes[e.Property]; ok {
				return ft
			}
		}
	}
	return types.Unknown()
}

func (c *Checker) inferStructLiteral(e *ast.StructLiteral) types.Type {
	sd, ok := c.structs[e.TypeName]
	if !ok {
		c.diags.Add(diagnostics.Error, "checker", e.Span(), "unknown struct %q", e.TypeName)
		return types.Unknown()
	}
	if len(e.Named) > 0 && len(e.Positional) > 0 {
		c.diags.Add(diagnostics.Error, "checker", e.Span(), "struct literal mixes positional and named fields")
	}

	bindings := map[string]types.Type{}
	for i, arg := range e.TypeArgs {
		if i < len(sd.typeParams) {
			bindings[sd.typeParams[i]] = c.resolveTypeExpr(arg)
		}
	}

	fieldTypes := make([]types.Type, len(sd.fieldOrder))
	if len(e.Positional) > 0 {
		for i, arg := range e.Positional {
			at := c.infer(arg)
			if i < len(sd.fieldOrder) {
				expected := substitute(sd.fieldTypes[sd.fieldOrder[i]], bindings)
				unify(expected, at, bindings)
				fieldTypes[i] = substitute(sd.fieldTypes[sd.fieldOrder[i]], bindings)
			}
		}
	} else {
		for name, arg := range e.Named {
			at := c.infer(arg)
			expected, ok := sd.fieldTypes[name]
			if !ok {
				c.diags.Add(diagnostics.Error, "checker", arg.Span(), "struct %q has no field %q", e.TypeName, name)
				continue
			}
			unify(substitute(expected, bindings), at, bindings)
		}
		for i, name := range sd.fieldOrder {
			fieldTypes[i] = substitute(sd.fieldTypes[name], bindings)
		}
	}

	typeArgs := make([]types.Type, len(sd.typeParams))
	for i, p := range sd.typeParams {
		if t, ok := bindings[p]; ok {
			typeArgs[i] = t
		} else {
			typeArgs[i] = types.Unknown()
		}
	}

	if len(sd.typeParams) > 0 {
		c.structCalls[e.Span()] = structCall{
			Name:     e.TypeName,
			Instance: StructInstance{TypeArgs: typeArgs, FieldTypes: fieldTypes},
		}
	}

	return types.Struct(e.TypeName, typeArgs)
}

// inferCall resolves a CallExpr: stdlib builtin, struct constructor (bare
// identifier matching a known struct name), or function call (with generic
// unification when the callee has type parameters).
func (c *Checker) inferCall(e *ast.CallExpr) types.Type {
	if member, ok := e.Callee.(*ast.MemberExpr); ok {
		if ident, ok := member.Object.(*ast.Identifier); ok {
			if _, ok := c.enums[ident.Name]; ok {
				for _, a := range e.Args {
					c.infer(a)
				}
				if _, ok := c.EnumVariantFields(ident.Name, member.Property); !ok {
					c.diags.Add(diagnostics.Error, "checker", e.Span(), "enum %q has no variant %q", ident.Name, member.Property)
				}
				return types.Struct("Error", nil)
			}
			if modPath, ok := c.stdlibAliases[ident.Name]; ok {
				for _, a := range e.Args {
					c.infer(a)
				}
				if m, ok := stdlib.Lookup(modPath, member.Property); ok {
					return *m.Signature.Return
				}
				c.diags.Add(diagnostics.Error, "checker", e.Span(), "unknown stdlib member %q on %q", member.Property, modPath)
				return types.Unknown()
			}
		}
	}

	name, ok := calleeName(e.Callee)
	if !ok {
		for _, a := range e.Args {
			c.infer(a)
		}
		ct := c.infer(e.Callee)
		if ct.Kind == types.FunctionKind {
			for i, a := range e.Args {
				if i < len(ct.Params) {
					c.ArgumentExpectations[a.Span()] = ct.Params[i]
				}
			}
			return *ct.Return
		}
		return types.Unknown()
	}

	if _, isStruct := c.structs[name]; isStruct {
		lit := &ast.StructLiteral{BaseNode: ast.NewBase(e.Span()), TypeName: name, TypeArgs: e.TypeArguments, Positional: e.Args}
		return c.inferStructLiteral(lit)
	}

	sig, ok := c.functions[name]
	if !ok {
		for _, a := range e.Args {
			c.infer(a)
		}
		c.diags.Add(diagnostics.Error, "checker", e.Span(), "unknown function %q", name)
		return types.Unknown()
	}

	argTypes := make([]types.Type, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = c.infer(a)
	}

	if len(sig.typeParams) == 0 {
		for i, a := range e.Args {
			if i < len(sig.paramTypes) {
				c.ArgumentExpectations[a.Span()] = sig.paramTypes[i]
				c.ensureCompatible(a.Span(), sig.paramTypes[i], argTypes[i])
			}
		}
		if len(e.Args) != len(sig.paramTypes) {
			c.diags.Add(diagnostics.Error, "checker", e.Span(), "%s expects %d arguments, got %d", name, len(sig.paramTypes), len(e.Args))
		}
		return sig.returnType
	}

	bindings := map[string]types.Type{}
	for i, ta := range e.TypeArguments {
		if i < len(sig.typeParams) {
			bindings[sig.typeParams[i]] = c.resolveTypeExpr(ta)
		}
	}
	for i, a := range e.Args {
		if i < len(sig.paramTypes) {
			unify(sig.paramTypes[i], argTypes[i], bindings)
		}
		_ = a
	}
	for _, p := range sig.typeParams {
		if _, ok := bindings[p]; !ok {
			c.diags.Add(diagnostics.Error, "checker", e.Span(), "could not infer type parameter %q of %q", p, name)
			bindings[p] = types.Unknown()
		}
	}

	typeArgs := make([]types.Type, len(sig.typeParams))
	paramTypes := make([]types.Type, len(sig.paramTypes))
	for i, p := range sig.paramTypes {
		paramTypes[i] = substitute(p, bindings)
	}
	for i, p := range sig.typeParams {
		typeArgs[i] = bindings[p]
	}
	returnType := substitute(sig.returnType, bindings)

	for i, a := range e.Args {
		if i < len(paramTypes) {
			c.ArgumentExpectations[a.Span()] = paramTypes[i]
		}
	}

	instance := FunctionInstance{TypeArgs: typeArgs, ParamTypes: paramTypes, ReturnType: returnType}
	c.functionCalls[e.Span()] = functionCall{Name: name, Instance: instance}
	c.FunctionInstances[name] = append(c.FunctionInstances[name], instance)

	return returnType
}

func calleeName(expr ast.Expression) (string, bool) {
	if ident, ok := expr.(*ast.Identifier); ok {
		return ident.Name, true
	}
	return "", false
}

// unify matches formal against actual, recording GenericParameter bindings
// (spec §4.6). Structural mismatches are ignored here (already reported by
// the caller's ensureCompatible pass where relevant).
func unify(formal, actual types.Type, bindings map[string]types.Type) {
	switch formal.Kind {
	case types.GenericParameterKind:
		if _, bound := bindings[formal.Name]; !bound {
			bindings[formal.Name] = actual
		}
	case types.OptionalKind:
		if actual.Kind == types.OptionalKind {
			unify(*formal.Elem, *actual.Elem, bindings)
		} else {
			unify(*formal.Elem, actual, bindings)
		}
	case types.ListKind:
		if actual.Kind == types.ListKind {
			unify(*formal.Elem, *actual.Elem, bindings)
		}
	case types.DictKind:
		if actual.Kind == types.DictKind {
			unify(*formal.Elem, *actual.Elem, bindings)
		}
	case types.StructKind, types.EnumKind:
		if actual.Kind == formal.Kind && actual.Name == formal.Name {
			for i := range formal.TypeArgs {
				if i < len(actual.TypeArgs) {
					unify(formal.TypeArgs[i], actual.TypeArgs[i], bindings)
				}
			}
		}
	case types.FunctionKind:
		if actual.Kind == types.FunctionKind {
			for i := range formal.Params {
				if i < len(actual.Params) {
					unify(formal.Params[i], actual.Params[i], bindings)
				}
			}
			unify(*formal.Return, *actual.Return, bindings)
		}
	}
}

// substitute replaces every GenericParameter in t with its binding.
func substitute(t types.Type, bindings map[string]types.Type) types.Type {
	switch t.Kind {
	case types.GenericParameterKind:
		if bound, ok := bindings[t.Name]; ok {
			return bound
		}
		return t
	case types.OptionalKind:
		return types.Optional(substitute(*t.Elem, bindings))
	case types.ListKind:
		return types.List(substitute(*t.Elem, bindings))
	case types.DictKind:
		return types.Dict(substitute(*t.Elem, bindings))
	case types.FunctionKind:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = substitute(p, bindings)
		}
		return types.Function(params, substitute(*t.Return, bindings))
	case types.StructKind:
		if len(t.TypeArgs) == 0 {
			return t
		}
		args := make([]types.Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = substitute(a, bindings)
		}
		return types.Struct(t.Name, args)
	default:
		return t
	}
}
