// Package scope implements the tea resolver (spec §4.5): it detects
// reference-before-definition errors and computes, for every lambda, the
// ordered list of names it captures from an enclosing scope.
package scope

import (
	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/diagnostics"
)

// scopeFrame is one lexical scope: a function body, a lambda body, or a
// block (if/while/for).
type scopeFrame struct {
	names    map[string]bool
	isGlobal bool
	lambda   *lambdaFrame // non-nil when this frame belongs to a lambda
}

// lambdaFrame accumulates one lambda's ordered, deduplicated capture list.
type lambdaFrame struct {
	id       int
	captures []string
	seen     map[string]bool
}

// Resolver walks a module's statements maintaining a scope stack.
type Resolver struct {
	diags   diagnostics.Bag
	scopes  []*scopeFrame
	lambdas []*lambdaFrame

	// Captures maps lambda id to its ordered capture list, the contract
	// the code generator consumes to lay out closure capture slots.
	Captures map[int][]string
}

// New creates a Resolver. globals are names already known to exist before
// resolution starts (builtins, stdlib aliases, other top-level symbols
// collected in a first pass by the caller).
func New(globals []string) *Resolver {
	r := &Resolver{Captures: map[int][]string{}}
	g := &scopeFrame{names: map[string]bool{}, isGlobal: true}
	for _, name := range globals {
		g.names[name] = true
	}
	r.scopes = []*scopeFrame{g}
	return r
}

// Diagnostics returns every diagnostic collected during resolution.
func (r *Resolver) Diagnostics() *diagnostics.Bag {
	return &r.diags
}

func (r *Resolver) push(isGlobal bool, l *lambdaFrame) {
	r.scopes = append(r.scopes, &scopeFrame{names: map[string]bool{}, isGlobal: isGlobal, lambda: l})
}

func (r *Resolver) pop() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) top() *scopeFrame { return r.scopes[len(r.scopes)-1] }

func (r *Resolver) declare(name string) {
	r.top().names[name] = true
}

// Resolve runs reference-before-definition checking and capture analysis
// over every top-level statement. It first forward-declares every
// top-level def/struct/enum/var/const so that mutual recursion and use-
// before-textual-definition at module scope is never flagged, matching
// tea's top-level hoisting.
func (r *Resolver) Resolve(stmts []ast.Statement) {
	for _, stmt := range stmts {
		if name, ok := topLevelName(stmt); ok {
			r.declare(name)
		}
	}
	for _, stmt := range stmts {
		r.resolveStmt(stmt)
	}
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

func (r *Resolver) resolveStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.UseStmt:
		r.declare(s.Alias)
	case *ast.VarStmt:
		r.resolveExpr(s.Value)
		r.declare(s.Name)
	case *ast.FunctionStmt:
		r.push(false, nil)
		for _, param := range s.Params {
			r.declare(param.Name)
		}
		for _, stmt := range s.Body {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.StructStmt, *ast.EnumStmt:
		// Field/variant names are not expressions; nothing to resolve.
	case *ast.TestStmt:
		r.push(false, nil)
		for _, stmt := range s.Body {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.ConditionalStmt:
		r.resolveExpr(s.Condition)
		r.push(false, nil)
		for _, stmt := range s.Then {
			r.resolveStmt(stmt)
		}
		r.pop()
		r.push(false, nil)
		for _, stmt := range s.Else {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.LoopStmt:
		r.resolveExpr(s.Condition)
		r.resolveExpr(s.Iterable)
		r.push(false, nil)
		if s.Kind == ast.LoopForOf {
			r.declare(s.Variable)
		}
		for _, stmt := range s.Body {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.ReturnStmt:
		r.resolveExpr(s.Value)
	case *ast.ThrowStmt:
		r.resolveExpr(s.Value)
	case *ast.TryStmt:
		r.push(false, nil)
		for _, stmt := range s.Body {
			r.resolveStmt(stmt)
		}
		r.pop()
		r.push(false, nil)
		if s.CatchName != "" {
			r.declare(s.CatchName)
		}
		for _, stmt := range s.CatchBody {
			r.resolveStmt(stmt)
		}
		r.pop()
	case *ast.ExpressionStmt:
		r.resolveExpr(s.Expr)
	case *ast.MatchStmt:
		r.resolveExpr(s.Match)
	}
}

func (r *Resolver) resolveExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.Identifier:
		r.useName(e.Name, e.Span())
	case *ast.Literal:
		// no references
	case *ast.InterpolatedString:
		for _, part := range e.Parts {
			if part.IsExpr {
				r.resolveExpr(part.Expr)
			}
		}
	case *ast.ListExpr:
		for _, el := range e.Elements {
			r.resolveExpr(el)
		}
	case *ast.DictExpr:
		for _, entry := range e.Entries {
			r.resolveExpr(entry.Key)
			r.resolveExpr(entry.Value)
		}
	case *ast.UnaryExpr:
		r.resolveExpr(e.Operand)
	case *ast.BinaryExpr:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.CallExpr:
		r.resolveExpr(e.Callee)
		for _, a := range e.Args {
			r.resolveExpr(a)
		}
	case *ast.MemberExpr:
		r.resolveExpr(e.Object)
	case *ast.IndexExpr:
		r.resolveExpr(e.Object)
		r.resolveExpr(e.Index)
	case *ast.RangeExpr:
		r.resolveExpr(e.Start)
		r.resolveExpr(e.End)
	case *ast.Lambda:
		r.resolveLambda(e)
	case *ast.AssignmentExpr:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Target)
	case *ast.GroupingExpr:
		r.resolveExpr(e.Inner)
	case *ast.MatchExpr:
		r.resolveExpr(e.Scrutinee)
		for _, arm := range e.Arms {
			r.resolveExpr(arm.Pattern)
			r.resolveExpr(arm.Body)
		}
	case *ast.UnwrapExpr:
		r.resolveExpr(e.Inner)
	case *ast.StructLiteral:
		for _, v := range e.Named {
			r.resolveExpr(v)
		}
		for _, v := range e.Positional {
			r.resolveExpr(v)
		}
	}
}

func (r *Resolver) resolveLambda(l *ast.Lambda) {
	lf := &lambdaFrame{id: l.Id, seen: map[string]bool{}}
	r.lambdas = append(r.lambdas, lf)
	r.push(false, lf)
	for _, param := range l.Params {
		r.declare(param.Name)
	}
	for _, stmt := range l.Body {
		r.resolveStmt(stmt)
	}
	r.pop()
	r.Captures[l.Id] = lf.captures
}

// useName resolves an identifier reference: if it is bound in the current
// lambda's own scope chain nothing happens; if it is bound in some
// enclosing non-global scope it is recorded as a capture of every lambda
// frame between here and the binding scope (nested lambdas propagate
// captures outward, per spec §4.5); if it is bound only at global scope it
// is not a capture; if it is bound nowhere, a reference-before-definition
// diagnostic is reported.
func (r *Resolver) useName(name string, span diagnostics.Span) {
	var crossedLambdas []*lambdaFrame
	for i := len(r.scopes) - 1; i >= 0; i-- {
		frame := r.scopes[i]
		if frame.lambda != nil {
			crossedLambdas = append(crossedLambdas, frame.lambda)
		}
		if frame.names[name] {
			if frame.isGlobal {
				return
			}
			// Bound in this frame itself: if this very frame is a lambda
			// frame, the binding is a parameter/local of that lambda, not
			// a capture of it — drop it from the crossed list.
			if frame.lambda != nil && len(crossedLambdas) > 0 && crossedLambdas[len(crossedLambdas)-1] == frame.lambda {
				crossedLambdas = crossedLambdas[:len(crossedLambdas)-1]
			}
			for _, lf := range crossedLambdas {
				if !lf.seen[name] {
					lf.seen[name] = true
					lf.captures = append(lf.captures, name)
				}
			}
			return
		}
	}
	r.diags.Add(diagnostics.Error, "resolver", span, "reference to undefined name %q", name)
}
