package module

import "github.com/bentruyman/tea/internal/compiler/ast"

// renameTopLevel substitutes every Identifier reference to a name in
// renames throughout stmts, including the declaration names themselves, so
// the inlined module's own recursive calls keep working.
func renameTopLevel(stmts []ast.Statement, renames map[string]string) []ast.Statement {
	for _, stmt := range stmts {
		renameStmt(stmt, renames)
	}
	return stmts
}

func renameStmt(stmt ast.Statement, renames map[string]string) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		if n, ok := renames[s.Name]; ok {
			s.Name = n
		}
		renameBlock(s.Body, renames)
	case *ast.StructStmt:
		if n, ok := renames[s.Name]; ok {
			s.Name = n
		}
	case *ast.EnumStmt:
		if n, ok := renames[s.Name]; ok {
			s.Name = n
		}
	case *ast.VarStmt:
		if n, ok := renames[s.Name]; ok {
			s.Name = n
		}
		renameExpr(s.Value, renames)
	case *ast.TestStmt:
		renameBlock(s.Body, renames)
	case *ast.ConditionalStmt:
		renameExpr(s.Condition, renames)
		renameBlock(s.Then, renames)
		renameBlock(s.Else, renames)
	case *ast.LoopStmt:
		renameExpr(s.Condition, renames)
		renameExpr(s.Iterable, renames)
		renameBlock(s.Body, renames)
	case *ast.ReturnStmt:
		renameExpr(s.Value, renames)
	case *ast.ThrowStmt:
		renameExpr(s.Value, renames)
	case *ast.TryStmt:
		renameBlock(s.Body, renames)
		renameBlock(s.CatchBody, renames)
	case *ast.ExpressionStmt:
		renameExpr(s.Expr, renames)
	case *ast.MatchStmt:
		renameExpr(s.Match, renames)
	}
}

func renameBlock(stmts []ast.Statement, renames map[string]string) {
	for _, s := range stmts {
		renameStmt(s, renames)
	}
}

func renameExpr(expr ast.Expression, renames map[string]string) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.Identifier:
		if n, ok := renames[e.Name]; ok {
			e.Name = n
		}
	case *ast.InterpolatedString:
		for i := range e.Parts {
			renameExpr(e.Parts[i].Expr, renames)
		}
	case *ast.ListExpr:
		for _, el := range e.Elements {
			renameExpr(el, renames)
		}
	case *ast.DictExpr:
		for _, entry := range e.Entries {
			renameExpr(entry.Key, renames)
			renameExpr(entry.Value, renames)
		}
	case *ast.UnaryExpr:
		renameExpr(e.Operand, renames)
	case *ast.BinaryExpr:
		renameExpr(e.Left, renames)
		renameExpr(e.Right, renames)
	case *ast.CallExpr:
		renameExpr(e.Callee, renames)
		for _, a := range e.Args {
			renameExpr(a, renames)
		}
	case *ast.MemberExpr:
		renameExpr(e.Object, renames)
	case *ast.IndexExpr:
		renameExpr(e.Object, renames)
		renameExpr(e.Index, renames)
	case *ast.RangeExpr:
		renameExpr(e.Start, renames)
		renameExpr(e.End, renames)
	case *ast.Lambda:
		renameBlock(e.Body, renames)
	case *ast.AssignmentExpr:
		renameExpr(e.Target, renames)
		renameExpr(e.Value, renames)
	case *ast.GroupingExpr:
		renameExpr(e.Inner, renames)
	case *ast.MatchExpr:
		renameExpr(e.Scrutinee, renames)
		for i := range e.Arms {
			renameExpr(e.Arms[i].Pattern, renames)
			renameExpr(e.Arms[i].Body, renames)
		}
	case *ast.UnwrapExpr:
		renameExpr(e.Inner, renames)
	case *ast.StructLiteral:
		if n, ok := renames[e.TypeName]; ok {
			e.TypeName = n
		}
		for _, v := range e.Named {
			renameExpr(v, renames)
		}
		for _, v := range e.Positional {
			renameExpr(v, renames)
		}
	}
}

// rewriteAliasMembers rewrites `alias.member` expressions to the renamed
// local identifier when alias is a known non-stdlib import and member is
// one of its renamed top-level symbols, per spec §4.4.
func rewriteAliasMembers(stmts []ast.Statement, aliasRenames map[string]map[string]string) []ast.Statement {
	if len(aliasRenames) == 0 {
		return stmts
	}
	for _, stmt := range stmts {
		rewriteMemberStmt(stmt, aliasRenames)
	}
	return stmts
}

func rewriteMemberStmt(stmt ast.Statement, aliasRenames map[string]map[string]string) {
	switch s := stmt.(type) {
	case *ast.FunctionStmt:
		rewriteMemberBlock(s.Body, aliasRenames)
	case *ast.VarStmt:
		s.Value = rewriteMemberExpr(s.Value, aliasRenames)
	case *ast.TestStmt:
		rewriteMemberBlock(s.Body, aliasRenames)
	case *ast.ConditionalStmt:
		s.Condition = rewriteMemberExpr(s.Condition, aliasRenames)
		rewriteMemberBlock(s.Then, aliasRenames)
		rewriteMemberBlock(s.Else, aliasRenames)
	case *ast.LoopStmt:
		s.Condition = rewriteMemberExpr(s.Condition, aliasRenames)
		s.Iterable = rewriteMemberExpr(s.Iterable, aliasRenames)
		rewriteMemberBlock(s.Body, aliasRenames)
	case *ast.ReturnStmt:
		s.Value = rewriteMemberExpr(s.Value, aliasRenames)
	case *ast.ThrowStmt:
		s.Value = rewriteMemberExpr(s.Value, aliasRenames)
	case *ast.TryStmt:
		rewriteMemberBlock(s.Body, aliasRenames)
		rewriteMemberBlock(s.CatchBody, aliasRenames)
	case *ast.ExpressionStmt:
		s.Expr = rewriteMemberExpr(s.Expr, aliasRenames)
	case *ast.MatchStmt:
		rewriteMemberExpr(s.Match, aliasRenames)
	}
}

func rewriteMemberBlock(stmts []ast.Statement, aliasRenames map[string]map[string]string) {
	for _, s := range stmts {
		rewriteMemberStmt(s, aliasRenames)
	}
}

// rewriteMemberExpr returns expr with every `alias.member` sub-expression
// replaced by the renamed identifier, recursing into every expression kind
// that can contain one.
func rewriteMemberExpr(expr ast.Expression, aliasRenames map[string]map[string]string) ast.Expression {
	if expr == nil {
		return nil
	}
	if member, ok := expr.(*ast.MemberExpr); ok {
		if id, ok := member.Object.(*ast.Identifier); ok {
			if renames, ok := aliasRenames[id.Name]; ok {
				if renamed, ok := renames[member.Property]; ok {
					return ast.NewIdentifier(member.Span(), renamed)
				}
			}
		}
	}

	switch e := expr.(type) {
	case *ast.InterpolatedString:
		for i := range e.Parts {
			e.Parts[i].Expr = rewriteMemberExpr(e.Parts[i].Expr, aliasRenames)
		}
	case *ast.ListExpr:
		for i := range e.Elements {
			e.Elements[i] = rewriteMemberExpr(e.Elements[i], aliasRenames)
		}
	case *ast.DictExpr:
		for i := range e.Entries {
			e.Entries[i].Key = rewriteMemberExpr(e.Entries[i].Key, aliasRenames)
			e.Entries[i].Value = rewriteMemberExpr(e.Entries[i].Value, aliasRenames)
		}
	case *ast.UnaryExpr:
		e.Operand = rewriteMemberExpr(e.Operand, aliasRenames)
	case *ast.BinaryExpr:
		e.Left = rewriteMemberExpr(e.Left, aliasRenames)
		e.Right = rewriteMemberExpr(e.Right, aliasRenames)
	case *ast.CallExpr:
		e.Callee = rewriteMemberExpr(e.Callee, aliasRenames)
		for i := range e.Args {
			e.Args[i] = rewriteMemberExpr(e.Args[i], aliasRenames)
		}
	case *ast.MemberExpr:
		e.Object = rewriteMemberExpr(e.Object, aliasRenames)
	case *ast.IndexExpr:
		e.Object = rewriteMemberExpr(e.Object, aliasRenames)
		e.Index = rewriteMemberExpr(e.Index, aliasRenames)
	case *ast.RangeExpr:
		e.Start = rewriteMemberExpr(e.Start, aliasRenames)
		e.End = rewriteMemberExpr(e.End, aliasRenames)
	case *ast.Lambda:
		rewriteMemberBlock(e.Body, aliasRenames)
	case *ast.AssignmentExpr:
		e.Target = rewriteMemberExpr(e.Target, aliasRenames)
		e.Value = rewriteMemberExpr(e.Value, aliasRenames)
	case *ast.GroupingExpr:
		e.Inner = rewriteMemberExpr(e.Inner, aliasRenames)
	case *ast.MatchExpr:
		e.Scrutinee = rewriteMemberExpr(e.Scrutinee, aliasRenames)
		for i := range e.Arms {
			e.Arms[i].Pattern = rewriteMemberExpr(e.Arms[i].Pattern, aliasRenames)
			e.Arms[i].Body = rewriteMemberExpr(e.Arms[i].Body, aliasRenames)
		}
	case *ast.UnwrapExpr:
		e.Inner = rewriteMemberExpr(e.Inner, aliasRenames)
	case *ast.StructLiteral:
		for k, v := range e.Named {
			e.Named[k] = rewriteMemberExpr(v, aliasRenames)
		}
		for i := range e.Positional {
			e.Positional[i] = rewriteMemberExpr(e.Positional[i], aliasRenames)
		}
	}
	return expr
}
