// Package types defines the checked Type model produced by the type
// checker (spec §4.6).
package types

import "strings"

// Kind discriminates the concrete shape of a Type.
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	String
	Nil
	OptionalKind
	ListKind
	DictKind
	FunctionKind
	StructKind
	EnumKind
	GenericParameterKind
	UnknownKind
)

// Type is a checked type. Only the fields relevant to Kind are populated.
type Type struct {
	Kind Kind

	// OptionalKind, ListKind, DictKind
	Elem *Type

	// FunctionKind
	Params []Type
	Return *Type

	// StructKind, EnumKind, GenericParameterKind
	Name     string
	TypeArgs []Type
}

func Simple(k Kind) Type { return Type{Kind: k} }

func Optional(inner Type) Type { return Type{Kind: OptionalKind, Elem: &inner} }

func List(elem Type) Type { return Type{Kind: ListKind, Elem: &elem} }

func Dict(value Type) Type { return Type{Kind: DictKind, Elem: &value} }

func Function(params []Type, ret Type) Type {
	return Type{Kind: FunctionKind, Params: params, Return: &ret}
}

func Struct(name string, typeArgs []Type) Type {
	return Type{Kind: StructKind, Name: name, TypeArgs: typeArgs}
}

func Enum(name string) Type { return Type{Kind: EnumKind, Name: name} }

func GenericParameter(name string) Type { return Type{Kind: GenericParameterKind, Name: name} }

func Unknown() Type { return Type{Kind: UnknownKind} }

// String renders a Type the way tea source spells it, for diagnostics.
func (t Type) String() string {
	switch t.Kind {
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case Nil:
		return "Nil"
	case UnknownKind:
		return "Unknown"
	case OptionalKind:
		return t.Elem.String() + "?"
	case ListKind:
		return "List[" + t.Elem.String() + "]"
	case DictKind:
		return "Dict[String, " + t.Elem.String() + "]"
	case FunctionKind:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return "Func(" + strings.Join(parts, ", ") + ") -> " + t.Return.String()
	case StructKind, EnumKind, GenericParameterKind:
		if len(t.TypeArgs) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			parts[i] = a.String()
		}
		return t.Name + "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// Equal reports structural equality, ignoring GenericParameter names (two
// GenericParameter types are always considered equal to each other: they
// are placeholders, not distinguishing information, outside of a binding
// context).
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case OptionalKind, ListKind, DictKind:
		return Equal(*a.Elem, *b.Elem)
	case FunctionKind:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Equal(*a.Return, *b.Return)
	case StructKind, EnumKind:
		if a.Name != b.Name || len(a.TypeArgs) != len(b.TypeArgs) {
			return false
		}
		for i := range a.TypeArgs {
			if !Equal(a.TypeArgs[i], b.TypeArgs[i]) {
				return false
			}
		}
		return true
	case GenericParameterKind:
		return true
	default:
		return true
	}
}

// Join merges two types for list/dict literal element inference (spec
// §4.6): Unknown merges to the other type; otherwise equal types merge to
// themselves, and unequal types merge to Unknown.
func Join(a, b Type) Type {
	if a.Kind == UnknownKind {
		return b
	}
	if b.Kind == UnknownKind {
		return a
	}
	if Equal(a, b) {
		return a
	}
	return Unknown()
}

// IsNumeric reports whether t is Int or Float.
func IsNumeric(t Type) bool { return t.Kind == Int || t.Kind == Float }
