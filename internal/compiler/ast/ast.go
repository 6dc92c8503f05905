// Package ast defines the tea abstract syntax tree produced by the parser.
//
// AST nodes form a strict tree with no back-references; spans are value
// types keyed into side-maps by later phases (module expansion, resolution,
// type checking) so that transformations never need to fix up pointers.
package ast

import "github.com/bentruyman/tea/internal/compiler/diagnostics"

// Node is the base interface for every AST node.
type Node interface {
	Span() diagnostics.Span
}

// Module is an ordered list of top-level Statements, the root AST node for
// one source file (spec §3).
type Module struct {
	Statements []Statement
}

// Statement is the interface for all statement kinds.
type Statement interface {
	Node
	statementNode()
}

// Expression is the interface for all expression kinds. Every Expression
// carries a span and an ExpressionKind discriminant (spec §3); in this Go
// encoding the discriminant is the concrete type via a type switch.
type Expression interface {
	Node
	expressionNode()
}

type BaseNode struct {
	span diagnostics.Span
}

func (b BaseNode) Span() diagnostics.Span { return b.span }

// NewBase constructs a BaseNode carrying span, for use by other packages
// (parser, module expander) building AST nodes outside this package.
func NewBase(span diagnostics.Span) BaseNode {
	return BaseNode{span: span}
}

// NewSpan is a small helper so other packages can build a Span without
// reaching into diagnostics for field names.
func NewSpan(line, col, endLine, endCol int) diagnostics.Span {
	return diagnostics.Span{Line: line, Column: col, EndLine: endLine, EndColumn: endCol}
}

// ============ STATEMENTS ============

// UseStmt: use alias = "path" (spec §4.3, §4.4).
type UseStmt struct {
	BaseNode
	Alias string
	Path  string
}

func (s *UseStmt) statementNode() {}

// VarStmt: var x = expr or const x = expr, optionally annotated with a type.
type VarStmt struct {
	BaseNode
	Name    string
	Type    TypeExpr // nil if inferred
	Value   Expression
	IsConst bool
}

func (s *VarStmt) statementNode() {}

// Param is a function or lambda parameter.
type Param struct {
	Name string
	Type TypeExpr // nil if the annotation was omitted (diagnostic, not failure)
	Span diagnostics.Span
}

// FunctionStmt: def name[T, U](params) -> ReturnType ... end.
type FunctionStmt struct {
	BaseNode
	Name           string
	Public         bool
	TypeParameters []string
	Params         []*Param
	ReturnType     TypeExpr
	Body           []Statement
	DocComment     string
}

func (s *FunctionStmt) statementNode() {}

// TestStmt: test "name" ... end.
type TestStmt struct {
	BaseNode
	Name string
	Body []Statement
}

func (s *TestStmt) statementNode() {}

// StructField is one field of a struct declaration.
type StructField struct {
	Name string
	Type TypeExpr
	Span diagnostics.Span
}

// StructStmt: struct Box[T] ... end.
type StructStmt struct {
	BaseNode
	Name           string
	TypeParameters []string
	Fields         []*StructField
}

func (s *StructStmt) statementNode() {}

// EnumVariant is one variant of an enum, optionally carrying named fields
// (used for tagged errors, scenario 6 of spec §8).
type EnumVariant struct {
	Name         string
	Discriminant int
	Fields       []*StructField
	Span         diagnostics.Span
}

// EnumStmt: enum Name ... end.
type EnumStmt struct {
	BaseNode
	Name     string
	Variants []*EnumVariant
}

func (s *EnumStmt) statementNode() {}

// ConditionalStmt: if/unless ... else ... end.
type ConditionalStmt struct {
	BaseNode
	Condition Expression
	Negated   bool // true for `unless`
	Then      []Statement
	Else      []Statement
}

func (s *ConditionalStmt) statementNode() {}

// LoopKind discriminates the three loop forms the parser accepts.
type LoopKind int

const (
	LoopWhile LoopKind = iota
	LoopUntil
	LoopForOf
)

// LoopStmt covers while/until (condition-driven) and for..of (iterator-driven,
// an Open Question per spec §9 — parsed here, lowering decided in the code
// generator).
type LoopStmt struct {
	BaseNode
	Kind      LoopKind
	Condition Expression // while/until
	Variable  string     // for .. of
	Iterable  Expression // for .. of
	Body      []Statement
}

func (s *LoopStmt) statementNode() {}

// ReturnStmt: return expr (Value nil for a bare return).
type ReturnStmt struct {
	BaseNode
	Value Expression
}

func (s *ReturnStmt) statementNode() {}

// ExpressionStmt wraps an expression used in statement position (calls,
// assignments).
type ExpressionStmt struct {
	BaseNode
	Expr Expression
}

func (s *ExpressionStmt) statementNode() {}

// MatchStmt: match scrutinee ... end used as a statement (an expression-form
// Match also exists, see MatchExpr).
type MatchStmt struct {
	BaseNode
	Match *MatchExpr
}

func (s *MatchStmt) statementNode() {}

// ThrowStmt: throw expr.
type ThrowStmt struct {
	BaseNode
	Value Expression
}

func (s *ThrowStmt) statementNode() {}

// TryStmt: try ... catch name ... end, desugars to a PushCatch/PopCatch
// region in the code generator (spec §4.7).
type TryStmt struct {
	BaseNode
	Body      []Statement
	CatchName string
	CatchBody []Statement
}

func (s *TryStmt) statementNode() {}

// ============ EXPRESSIONS ============

// Identifier: a bare name reference.
type Identifier struct {
	BaseNode
	Name string
}

func (e *Identifier) expressionNode() {}

// LiteralKind discriminates Literal payload types.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNil
)

// Literal: Int, Float, String, Bool, or Nil constant.
type Literal struct {
	BaseNode
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (e *Literal) expressionNode() {}

// InterpolatedStringPart is one segment of an InterpolatedString.
type InterpolatedStringPart struct {
	IsExpr bool
	Text   string
	Expr   Expression
}

// InterpolatedString: `...${expr}...` or "...${expr}..." (spec §4.2, §4.3).
type InterpolatedString struct {
	BaseNode
	Parts []InterpolatedStringPart
}

func (e *InterpolatedString) expressionNode() {}

// ListExpr: [a, b, c].
type ListExpr struct {
	BaseNode
	Elements []Expression
}

func (e *ListExpr) expressionNode() {}

// DictEntry is one key/value pair of a DictExpr.
type DictEntry struct {
	Key   Expression
	Value Expression
}

// DictExpr: {"a": 1, "b": 2}.
type DictExpr struct {
	BaseNode
	Entries []DictEntry
}

func (e *DictExpr) expressionNode() {}

// UnaryExpr: -x, not x.
type UnaryExpr struct {
	BaseNode
	Op      string
	Operand Expression
}

func (e *UnaryExpr) expressionNode() {}

// BinaryExpr: a + b, a and b, a ?? b.
type BinaryExpr struct {
	BaseNode
	Left  Expression
	Op    string
	Right Expression
}

func (e *BinaryExpr) expressionNode() {}

// CallExpr: callee(args...), with optional explicit generic type arguments
// (foo[Int](x), spec §4.3's speculative `[` lookahead).
type CallExpr struct {
	BaseNode
	Callee        Expression
	TypeArguments []TypeExpr
	Args          []Expression
}

func (e *CallExpr) expressionNode() {}

// MemberExpr: object.property.
type MemberExpr struct {
	BaseNode
	Object   Expression
	Property string
}

func (e *MemberExpr) expressionNode() {}

// IndexExpr: object[index].
type IndexExpr struct {
	BaseNode
	Object Expression
	Index  Expression
}

func (e *IndexExpr) expressionNode() {}

// RangeExpr: start..end or start...end (inclusive), an Open Question per
// spec §9.
type RangeExpr struct {
	BaseNode
	Start     Expression
	End       Expression
	Inclusive bool
}

func (e *RangeExpr) expressionNode() {}

// Lambda: |a, b| => expr-or-block. Id is assigned by the parser and is
// globally unique and never reused; the resolver keys the capture map by it.
type Lambda struct {
	BaseNode
	Id         int
	Params     []*Param
	ReturnType TypeExpr
	Body       []Statement
	IsBlock    bool // false: Body holds a single ExpressionStmt wrapping the expr form
}

func (e *Lambda) expressionNode() {}

// AssignmentExpr: target = value (target is an Identifier, MemberExpr, or
// IndexExpr).
type AssignmentExpr struct {
	BaseNode
	Target Expression
	Value  Expression
}

func (e *AssignmentExpr) expressionNode() {}

// GroupingExpr: (expr).
type GroupingExpr struct {
	BaseNode
	Inner Expression
}

func (e *GroupingExpr) expressionNode() {}

// MatchArm is one arm of a MatchExpr/MatchStmt.
type MatchArm struct {
	Pattern    Expression // nil for a wildcard arm
	IsWildcard bool
	Body       Expression
	Span       diagnostics.Span
}

// MatchExpr: match scrutinee case pattern => expr ... end.
type MatchExpr struct {
	BaseNode
	Scrutinee Expression
	Arms      []MatchArm
}

func (e *MatchExpr) expressionNode() {}

// UnwrapExpr: expr! (Optional unwrap, spec §4.6/§4.7).
type UnwrapExpr struct {
	BaseNode
	Inner Expression
}

func (e *UnwrapExpr) expressionNode() {}

// StructLiteral: Name{field: value, ...} or Name(positional, ...). Mixing the
// two forms is a type-checker error (spec §4.6).
type StructLiteral struct {
	BaseNode
	TypeName   string
	TypeArgs   []TypeExpr
	Named      map[string]Expression
	Positional []Expression
}

func (e *StructLiteral) expressionNode() {}

// ============ TYPE EXPRESSIONS (surface syntax, pre type-checking) ============

// TypeExpr is the parsed, unchecked spelling of a type annotation. The
// checker (internal/types, internal/checker) turns these into checked Type
// values.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedTypeExpr: Int, String, MyStruct, or a generic parameter name.
type NamedTypeExpr struct {
	BaseNode
	Name string
	Args []TypeExpr // explicit generic arguments, e.g. Dict[String, V]
}

func (t *NamedTypeExpr) typeExprNode() {}

// OptionalTypeExpr: T? surface spelling.
type OptionalTypeExpr struct {
	BaseNode
	Inner TypeExpr
}

func (t *OptionalTypeExpr) typeExprNode() {}

// ListTypeExpr: List[T].
type ListTypeExpr struct {
	BaseNode
	Element TypeExpr
}

func (t *ListTypeExpr) typeExprNode() {}

// DictTypeExpr: Dict[String, V] (keys are always String per spec §3).
type DictTypeExpr struct {
	BaseNode
	Value TypeExpr
}

func (t *DictTypeExpr) typeExprNode() {}

// FunctionTypeExpr: Func(T, U) -> V.
type FunctionTypeExpr struct {
	BaseNode
	Params []TypeExpr
	Return TypeExpr
}

func (t *FunctionTypeExpr) typeExprNode() {}

// NewIdentifier builds an Identifier at span.
func NewIdentifier(span diagnostics.Span, name string) *Identifier {
	return &Identifier{BaseNode{span}, name}
}

// NewNamedType builds a NamedTypeExpr at span.
func NewNamedType(span diagnostics.Span, name string, args []TypeExpr) *NamedTypeExpr {
	return &NamedTypeExpr{BaseNode{span}, name, args}
}
