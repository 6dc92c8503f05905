package vm

import "testing"

// program builds a single-chunk Program with no functions/structs/errors,
// the shape most opcode-level tests need.
func program(instrs []Instruction, constants []Value) *Program {
	return &Program{Chunk: Chunk{Instructions: instrs, Constants: constants}}
}

func TestRunReturnsFinalMainChunkValue(t *testing.T) {
	p := program([]Instruction{
		{Op: OpConstant, A: 0},
		{Op: OpReturn},
	}, []Value{NewInt(42)})

	v := New(p)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KInt || result.Int != 42 {
		t.Fatalf("got %+v, want Int(42)", result)
	}
}

func TestArithmeticAddition(t *testing.T) {
	p := program([]Instruction{
		{Op: OpConstant, A: 0},
		{Op: OpConstant, A: 1},
		{Op: OpAdd},
		{Op: OpReturn},
	}, []Value{NewInt(2), NewInt(3)})

	v := New(p)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 5 {
		t.Fatalf("got %d, want 5", result.Int)
	}
}

func TestJumpIfFalseSkipsThenBranch(t *testing.T) {
	// if false: push 1 else: push 2
	p := program([]Instruction{
		{Op: OpConstant, A: 0},  // false
		{Op: OpJumpIfFalse, A: 4},
		{Op: OpConstant, A: 1},  // 1 (skipped)
		{Op: OpJump, A: 5},
		{Op: OpConstant, A: 2},  // 2
		{Op: OpReturn},
	}, []Value{NewBool(false), NewInt(1), NewInt(2)})

	v := New(p)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 2 {
		t.Fatalf("got %d, want 2", result.Int)
	}
}

func TestCallInvokesFunctionWithArgsInOrder(t *testing.T) {
	// function(a, b) -> a - b, locals at stack[stackStart+1+i]
	fn := Function{
		Name:  "sub",
		Arity: 2,
		Chunk: Chunk{Instructions: []Instruction{
			{Op: OpGetLocal, A: 0},
			{Op: OpGetLocal, A: 1},
			{Op: OpSubtract},
			{Op: OpReturn},
		}},
	}

	p := &Program{
		Chunk: Chunk{Instructions: []Instruction{
			{Op: OpConstant, A: 0}, // callee: Function(0)
			{Op: OpConstant, A: 1}, // arg a = 10
			{Op: OpConstant, A: 2}, // arg b = 4
			{Op: OpCall, A: 2},
			{Op: OpReturn},
		}, Constants: []Value{NewFunction(0), NewInt(10), NewInt(4)}},
		Functions: []Function{fn},
	}

	v := New(p)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 6 {
		t.Fatalf("got %d, want 6 (10 - 4)", result.Int)
	}
}

func TestThrowUncaughtIsAPanic(t *testing.T) {
	p := &Program{
		Chunk: Chunk{Instructions: []Instruction{
			{Op: OpConstant, A: 0},
			{Op: OpMakeError, A: 0, B: 1},
			{Op: OpThrow},
		}, Constants: []Value{NewInt(1)}},
		Errors: []ErrorTemplate{{ErrorName: "Boom", VariantName: "Oops", FieldNames: []string{"code"}}},
	}

	v := New(p)
	if _, err := v.Run(); err == nil {
		t.Fatalf("expected an uncaught-error panic")
	}
}

func TestThrowCaughtByTryCatchDoesNotPanic(t *testing.T) {
	// try: throw Boom.Oops(1) catch e: return 0
	p := &Program{
		Chunk: Chunk{Instructions: []Instruction{
			{Op: OpPushCatch, A: 5},
			{Op: OpConstant, A: 0},
			{Op: OpMakeError, A: 0, B: 1},
			{Op: OpThrow},
			{Op: OpPopCatch},
			{Op: OpPop}, // catch handler: discard the caught error
			{Op: OpConstant, A: 1},
			{Op: OpReturn},
		}, Constants: []Value{NewInt(1), NewInt(0)}},
		Errors: []ErrorTemplate{{ErrorName: "Boom", VariantName: "Oops", FieldNames: []string{"code"}}},
	}

	v := New(p)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 0 {
		t.Fatalf("got %d, want 0", result.Int)
	}
}

func TestRegisterBuiltinDispatchesByKind(t *testing.T) {
	p := program([]Instruction{
		{Op: OpConstant, A: 0},
		{Op: OpBuiltinCall, Str: "Double", B: 1},
		{Op: OpReturn},
	}, []Value{NewInt(21)})

	v := New(p)
	v.RegisterBuiltin("Double", func(_ *VM, args []Value) (Value, error) {
		return NewInt(args[0].Int * 2), nil
	})

	result, err := v.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 42 {
		t.Fatalf("got %d, want 42", result.Int)
	}
}

func TestBuiltinStructCountOffsetsUserStructs(t *testing.T) {
	p := &Program{
		Chunk:   Chunk{Instructions: []Instruction{{Op: OpReturn}}},
		Structs: []StructTemplate{{Name: "Point", Fields: []string{"x", "y"}}},
	}
	v := New(p)
	if len(v.structTemplates) != BuiltinStructCount+1 {
		t.Fatalf("got %d struct templates, want %d", len(v.structTemplates), BuiltinStructCount+1)
	}
	if v.structTemplates[BuiltinStructCount].Name != "Point" {
		t.Fatalf("user struct not placed after builtins: %+v", v.structTemplates)
	}
}
