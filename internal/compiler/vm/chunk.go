package vm

import "github.com/bentruyman/tea/internal/compiler/diagnostics"

// Op is one bytecode opcode from the minimum complete instruction set of
// spec §4.7.
type Op int

const (
	OpConstant Op = iota
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpPop
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNegate
	OpNot
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpJump
	OpJumpIfFalse
	OpJumpIfNil
	OpCall
	OpReturn
	OpPrint
	OpBuiltinCall
	OpMakeList
	OpMakeDict
	OpIndex
	OpSetIndex
	OpSlice
	OpDictKeys
	OpGetField
	OpMakeStructPositional
	OpMakeStructNamed
	OpMakeError
	OpPushCatch
	OpPopCatch
	OpThrow
	OpMakeClosure
	OpConcatStrings
	OpAssertNonNil
	OpTypeIs
)

// TypeKind discriminates the shape a TypeIs check tests for (spec §4.8).
type TypeKind int

const (
	TypeBool TypeKind = iota
	TypeInt
	TypeFloat
	TypeString
	TypeNil
	TypeStructName
	TypeEnumName
	TypeErrorName
	TypeOptional
)

// TypeCheckSpec is the operand of a TypeIs instruction.
type TypeCheckSpec struct {
	Kind    TypeKind
	Name    string // Struct/Enum/Error name, when Kind names one
	Variant string // optional Error variant name ("" means any variant)
}

// Instruction is one bytecode instruction. Most opcodes use only A (a
// constant index, jump target, slot index, or count); MakeClosure and
// BuiltinCall use A and B together; Slice uses Flag for its inclusive bit;
// TypeIs carries its own TypeCheck payload.
type Instruction struct {
	Op        Op
	A         int
	B         int
	Flag      bool
	TypeCheck *TypeCheckSpec
	Str       string // BuiltinCall's symbolic kind name (e.g. "Print", "UtilLen")
}

// Chunk is a flat sequence of instructions plus its constant pool.
type Chunk struct {
	Instructions []Instruction
	Constants    []Value
}

// Function is one compiled function or closure body (spec §3). Name
// includes any generic specialization mangling (`name$g<type>$<type>`).
type Function struct {
	Name  string
	Arity int
	Chunk Chunk
}

// StructTemplate is compile-time metadata shared by every instance of a
// struct (spec Glossary).
type StructTemplate struct {
	Name   string
	Fields []string
}

// ErrorTemplate is compile-time metadata shared by every instance of an
// error variant.
type ErrorTemplate struct {
	ErrorName   string
	VariantName string
	FieldNames  []string
}

// TestCase is one `test "..." ... end` block, compiled to its own Function.
type TestCase struct {
	Name          string
	Span          diagnostics.Span
	FunctionIndex int
}

// Program is the VM's input: the top-level chunk plus every function,
// struct/error template, global slot name, and test block the code
// generator produced (spec §3).
type Program struct {
	Chunk     Chunk
	Functions []Function
	Globals   []string
	Structs   []StructTemplate
	Errors    []ErrorTemplate
	Tests     []TestCase
}

// ChunkRef identifies which chunk a Frame is executing: the program's main
// chunk, or one of its compiled functions (spec §4, supplemented from
// original_source's `enum ChunkRef`) — kept cheaply cloneable rather than
// embedding a raw chunk pointer.
type ChunkRef struct {
	IsMain        bool
	FunctionIndex int
}

func MainChunkRef() ChunkRef                  { return ChunkRef{IsMain: true} }
func FunctionChunkRef(index int) ChunkRef     { return ChunkRef{FunctionIndex: index} }
