// Package vm implements the tea bytecode format and the stack machine that
// executes it (spec §4.8): a tagged-union Value model with shared-immutable
// lists/dicts/structs, explicit call frames, and a catch stack for
// structured exception unwinding.
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the concrete shape of a Value.
type Kind int

const (
	KNil Kind = iota
	KBool
	KInt
	KFloat
	KString
	KList
	KDict
	KStruct
	KEnumVariant
	KError
	KFunction
	KClosure
)

// Value is the runtime tagged union (spec §3). Lists, dicts, structs, and
// errors are shared-immutable at the top level: a write clones the
// container's contents and installs a new shared handle (spec §9), so a
// Value here only ever holds a pointer to its container, never embeds one.
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64
	Str   string

	List  *ListValue
	Dict  *DictValue
	Struct *StructValue
	Enum  *EnumValue
	Error *ErrorValue

	FunctionIndex int
	Closure       *ClosureValue
}

type ListValue struct{ Items []Value }

type DictValue struct{ Items map[string]Value }

// StructValue holds a struct instance: Template indexes Program.Structs,
// Fields are positional in the template's field order.
type StructValue struct {
	Template int
	Fields   []Value
}

type EnumValue struct {
	Enum         string
	Variant      string
	Discriminant int
	Fields       []Value
}

// ErrorValue holds a thrown/caught structured error. Template indexes
// Program.Errors.
type ErrorValue struct {
	Template int
	Fields   []Value
}

type ClosureValue struct {
	FunctionIndex int
	Captures      []Value
}

func Nil() Value              { return Value{Kind: KNil} }
func NewBool(b bool) Value    { return Value{Kind: KBool, Bool: b} }
func NewInt(i int64) Value    { return Value{Kind: KInt, Int: i} }
func NewFloat(f float64) Value { return Value{Kind: KFloat, Float: f} }
func NewString(s string) Value { return Value{Kind: KString, Str: s} }

func NewList(items []Value) Value {
	return Value{Kind: KList, List: &ListValue{Items: items}}
}

func NewDict(items map[string]Value) Value {
	return Value{Kind: KDict, Dict: &DictValue{Items: items}}
}

func NewStruct(template int, fields []Value) Value {
	return Value{Kind: KStruct, Struct: &StructValue{Template: template, Fields: fields}}
}

func NewEnumVariant(enum, variant string, discriminant int, fields []Value) Value {
	return Value{Kind: KEnumVariant, Enum: &EnumValue{Enum: enum, Variant: variant, Discriminant: discriminant, Fields: fields}}
}

func NewError(template int, fields []Value) Value {
	return Value{Kind: KError, Error: &ErrorValue{Template: template, Fields: fields}}
}

func NewFunction(index int) Value { return Value{Kind: KFunction, FunctionIndex: index} }

func NewClosure(functionIndex int, captures []Value) Value {
	return Value{Kind: KClosure, Closure: &ClosureValue{FunctionIndex: functionIndex, Captures: captures}}
}

// Truthy implements the condition contract used by JumpIfFalse/Conditional:
// Nil and Bool(false) are falsy, every other value is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNil:
		return false
	case KBool:
		return v.Bool
	default:
		return true
	}
}

func (v Value) TypeName() string {
	switch v.Kind {
	case KNil:
		return "Nil"
	case KBool:
		return "Bool"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KString:
		return "String"
	case KList:
		return "List"
	case KDict:
		return "Dict"
	case KStruct:
		return "Struct"
	case KEnumVariant:
		return "Enum"
	case KError:
		return "Error"
	case KFunction, KClosure:
		return "Function"
	default:
		return "Unknown"
	}
}

// String renders a Value the way `print`/string interpolation does
// (UtilToString builtin, spec §4.7's interpolated-string emission).
func (v Value) String() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KInt:
		return strconv.FormatInt(v.Int, 10)
	case KFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KString:
		return v.Str
	case KList:
		parts := make([]string, len(v.List.Items))
		for i, it := range v.List.Items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KDict:
		parts := make([]string, 0, len(v.Dict.Items))
		for k, it := range v.Dict.Items {
			parts = append(parts, fmt.Sprintf("%q: %s", k, it.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KStruct:
		return "<struct>"
	case KEnumVariant:
		return v.Enum.Enum + "." + v.Enum.Variant
	case KError:
		return "<error>"
	case KFunction, KClosure:
		return "<function>"
	default:
		return "<unknown>"
	}
}

// Equal implements the structural equality used by the Equal/NotEqual
// instructions (spec §4.8).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNil:
		return true
	case KBool:
		return a.Bool == b.Bool
	case KInt:
		return a.Int == b.Int
	case KFloat:
		return a.Float == b.Float
	case KString:
		return a.Str == b.Str
	case KList:
		if len(a.List.Items) != len(b.List.Items) {
			return false
		}
		for i := range a.List.Items {
			if !Equal(a.List.Items[i], b.List.Items[i]) {
				return false
			}
		}
		return true
	case KDict:
		if len(a.Dict.Items) != len(b.Dict.Items) {
			return false
		}
		for k, av := range a.Dict.Items {
			bv, ok := b.Dict.Items[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KStruct:
		if a.Struct.Template != b.Struct.Template || len(a.Struct.Fields) != len(b.Struct.Fields) {
			return false
		}
		for i := range a.Struct.Fields {
			if !Equal(a.Struct.Fields[i], b.Struct.Fields[i]) {
				return false
			}
		}
		return true
	case KEnumVariant:
		return a.Enum.Enum == b.Enum.Enum && a.Enum.Variant == b.Enum.Variant
	case KError:
		if a.Error.Template != b.Error.Template || len(a.Error.Fields) != len(b.Error.Fields) {
			return false
		}
		for i := range a.Error.Fields {
			if !Equal(a.Error.Fields[i], b.Error.Fields[i]) {
				return false
			}
		}
		return true
	case KFunction:
		return a.FunctionIndex == b.FunctionIndex
	case KClosure:
		return a.Closure == b.Closure
	default:
		return false
	}
}
