package vm

import "fmt"

// BuiltinStructCount is the number of VM-internal struct templates
// pre-registered ahead of any user-defined struct (spec SPEC_FULL.md §4,
// supplemented from original_source's `vm.rs`): CliResult, CliParseResult,
// and ProcessResult, needed so `GetField` on an intrinsic's result resolves
// correctly even though the intrinsics themselves are external collaborators
// (spec §1). Code generators must offset every user struct template index
// by this amount when emitting MakeStructPositional/MakeStructNamed.
const BuiltinStructCount = 3

func builtinStructTemplates() []StructTemplate {
	return []StructTemplate{
		{Name: "CliResult", Fields: []string{"args", "flags"}},
		{Name: "CliParseResult", Fields: []string{"values", "remaining"}},
		{Name: "ProcessResult", Fields: []string{"stdout", "stderr", "exitCode"}},
	}
}

// Frame is one entry in the VM call stack (spec §4.8).
type Frame struct {
	Chunk      ChunkRef
	IP         int
	StackStart int
}

// CatchEntry is one live try/catch region (spec §4.8).
type CatchEntry struct {
	FrameIndex int
	StackLen   int
	HandlerIP  int
}

// Panic is an unrecoverable VM error (spec §7): division by zero, index out
// of bounds, a type violation at instruction level, stack underflow, an
// unknown builtin, or an uncaught structured error.
type Panic struct {
	Message string
}

func (p *Panic) Error() string { return p.Message }

func panicf(format string, args ...any) error {
	return &Panic{Message: fmt.Sprintf(format, args...)}
}

// Builtin is the signature external stdlib intrinsics implement (spec §1,
// §6): dispatched by symbolic kind name, never by direct import, so the VM
// never needs to know filesystem/process/json semantics.
type Builtin func(vm *VM, args []Value) (Value, error)

// VM is a stack machine executing a compiled Program (spec §4.8).
type VM struct {
	program *Program

	stack   []Value
	globals []Value
	frames  []Frame
	catches []CatchEntry

	structTemplates []StructTemplate

	builtins map[string]Builtin

	Stdout func(string)

	snapshots *SnapshotOptions
}

// New constructs a VM for program. The VM-internal struct templates are
// prepended ahead of program.Structs (see BuiltinStructCount).
func New(program *Program) *VM {
	v := &VM{
		program:  program,
		globals:  make([]Value, len(program.Globals)),
		builtins: map[string]Builtin{},
		Stdout:   func(s string) { fmt.Print(s) },
	}
	v.structTemplates = append(v.structTemplates, builtinStructTemplates()...)
	v.structTemplates = append(v.structTemplates, program.Structs...)
	return v
}

// RegisterBuiltin installs an intrinsic under its symbolic kind name, for
// BuiltinCall to dispatch to (spec §6's stdlib binding surface).
func (v *VM) RegisterBuiltin(kind string, fn Builtin) {
	v.builtins[kind] = fn
}

func (v *VM) chunkFor(ref ChunkRef) *Chunk {
	if ref.IsMain {
		return &v.program.Chunk
	}
	return &v.program.Functions[ref.FunctionIndex].Chunk
}

func (v *VM) push(val Value) { v.stack = append(v.stack, val) }

func (v *VM) pop() (Value, error) {
	if len(v.stack) == 0 {
		return Value{}, panicf("stack underflow")
	}
	val := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return val, nil
}

func (v *VM) popN(n int) ([]Value, error) {
	if len(v.stack) < n {
		return nil, panicf("stack underflow")
	}
	vals := make([]Value, n)
	copy(vals, v.stack[len(v.stack)-n:])
	v.stack = v.stack[:len(v.stack)-n]
	return vals, nil
}

// Run drives the main chunk to completion and returns its result value
// (spec §9's "Global state" initialization contract).
func (v *VM) Run() (Value, error) {
	v.frames = []Frame{{Chunk: MainChunkRef(), StackStart: 0}}
	return v.execute(0)
}

// execute runs frames until the frame at floor (and everything above it)
// has returned, yielding the final popped result. floor lets run_tests
// drive a just-pushed test frame to completion without re-running main.
func (v *VM) execute(floor int) (Value, error) {
	for {
		if len(v.frames) <= floor {
			if len(v.stack) == 0 {
				return Nil(), nil
			}
			return v.stack[len(v.stack)-1], nil
		}
		frame := &v.frames[len(v.frames)-1]
		chunk := v.chunkFor(frame.Chunk)
		if frame.IP >= len(chunk.Instructions) {
			return Nil(), panicf("frame ran off the end of its chunk")
		}
		instr := chunk.Instructions[frame.IP]
		frame.IP++

		result, err := v.step(instr, chunk, floor)
		if err != nil {
			if handled := v.unwindToCatch(err); handled {
				continue
			}
			return Nil(), err
		}
		if result.done {
			return result.value, nil
		}
	}
}

type stepResult struct {
	done  bool
	value Value
}

func (v *VM) step(instr Instruction, chunk *Chunk, floor int) (stepResult, error) {
	switch instr.Op {
	case OpConstant:
		v.push(chunk.Constants[instr.A])
	case OpPop:
		if _, err := v.pop(); err != nil {
			return stepResult{}, err
		}
	case OpGetGlobal:
		v.push(v.globals[instr.A])
	case OpSetGlobal:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		v.globals[instr.A] = val
		v.push(val)
	case OpGetLocal:
		frame := &v.frames[len(v.frames)-1]
		v.push(v.stack[frame.StackStart+1+instr.A])
	case OpSetLocal:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		frame := &v.frames[len(v.frames)-1]
		v.stack[frame.StackStart+1+instr.A] = val
		v.push(val)
	case OpAdd:
		return stepResult{}, v.binaryAdd()
	case OpSubtract, OpMultiply, OpDivide, OpModulo:
		return stepResult{}, v.binaryArith(instr.Op)
	case OpNegate:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		switch val.Kind {
		case KInt:
			v.push(NewInt(-val.Int))
		case KFloat:
			v.push(NewFloat(-val.Float))
		default:
			return stepResult{}, panicf("cannot negate %s", val.TypeName())
		}
	case OpNot:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		v.push(NewBool(!val.Truthy()))
	case OpEqual, OpNotEqual:
		b, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		a, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		eq := Equal(a, b)
		if instr.Op == OpNotEqual {
			eq = !eq
		}
		v.push(NewBool(eq))
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return stepResult{}, v.compare(instr.Op)
	case OpJump:
		v.frames[len(v.frames)-1].IP = instr.A
	case OpJumpIfFalse:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		if !val.Truthy() {
			v.frames[len(v.frames)-1].IP = instr.A
		}
	case OpJumpIfNil:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		v.push(val)
		if val.Kind == KNil {
			v.frames[len(v.frames)-1].IP = instr.A
		}
	case OpCall:
		if err := v.call(instr.A); err != nil {
			return stepResult{}, err
		}
	case OpReturn:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		frame := v.frames[len(v.frames)-1]
		v.frames = v.frames[:len(v.frames)-1]
		v.stack = v.stack[:frame.StackStart]
		v.push(val)
		if len(v.frames) <= floor {
			return stepResult{done: true, value: val}, nil
		}
	case OpPrint:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		v.Stdout(val.String() + "\n")
		v.push(Nil())
	case OpBuiltinCall:
		return stepResult{}, v.builtinCall(instr)
	case OpMakeList:
		items, err := v.popN(instr.A)
		if err != nil {
			return stepResult{}, err
		}
		v.push(NewList(items))
	case OpMakeDict:
		vals, err := v.popN(instr.A * 2)
		if err != nil {
			return stepResult{}, err
		}
		m := make(map[string]Value, instr.A)
		for i := 0; i < len(vals); i += 2 {
			m[vals[i].Str] = vals[i+1]
		}
		v.push(NewDict(m))
	case OpIndex:
		return stepResult{}, v.index()
	case OpSetIndex:
		return stepResult{}, v.setIndex()
	case OpSlice:
		return stepResult{}, v.slice(instr.Flag)
	case OpDictKeys:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		if val.Kind != KDict {
			return stepResult{}, panicf("DictKeys on non-Dict value")
		}
		keys := make([]Value, 0, len(val.Dict.Items))
		for k := range val.Dict.Items {
			keys = append(keys, NewString(k))
		}
		v.push(NewList(keys))
	case OpGetField:
		return stepResult{}, v.getField()
	case OpMakeStructPositional:
		return stepResult{}, v.makeStructPositional(instr.A)
	case OpMakeStructNamed:
		return stepResult{}, v.makeStructNamed(instr.A)
	case OpMakeError:
		fields, err := v.popN(instr.B)
		if err != nil {
			return stepResult{}, err
		}
		v.push(NewError(instr.A, fields))
	case OpPushCatch:
		v.catches = append(v.catches, CatchEntry{
			FrameIndex: len(v.frames) - 1,
			StackLen:   len(v.stack),
			HandlerIP:  instr.A,
		})
	case OpPopCatch:
		if len(v.catches) == 0 {
			return stepResult{}, panicf("PopCatch with no active catch frame")
		}
		v.catches = v.catches[:len(v.catches)-1]
	case OpThrow:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{}, &thrownError{value: val}
	case OpMakeClosure:
		captures, err := v.popN(instr.B)
		if err != nil {
			return stepResult{}, err
		}
		v.push(NewClosure(instr.A, captures))
	case OpConcatStrings:
		vals, err := v.popN(instr.A)
		if err != nil {
			return stepResult{}, err
		}
		var sb []byte
		for _, val := range vals {
			sb = append(sb, val.String()...)
		}
		v.push(NewString(string(sb)))
	case OpAssertNonNil:
		val, err := v.pop()
		if err != nil {
			return stepResult{}, err
		}
		if val.Kind == KNil {
			return stepResult{}, panicf("unwrap of nil optional")
		}
		v.push(val)
	case OpTypeIs:
		return stepResult{}, v.typeIs(instr.TypeCheck)
	default:
		return stepResult{}, panicf("unknown opcode %d", instr.Op)
	}
	return stepResult{}, nil
}

// thrownError is the internal error type carrying a structured Error Value
// while PopCatch/Throw unwind; it is distinct from *Panic so the unwinder
// can tell a structured throw from an unrecoverable panic.
type thrownError struct {
	value Value
}

func (t *thrownError) Error() string { return "uncaught error " + t.value.String() }

// unwindToCatch pops stale catch entries (from since-returned calls) until
// one whose frame is still live is found, truncates frames/stack back to
// that point, and resumes at the handler IP with the error pushed (spec
// §4.8, supplemented from original_source's exact truncation semantics).
// Runtime Panics are never caught by tea-level try/catch — only Throw'n
// structured errors are.
func (v *VM) unwindToCatch(err error) bool {
	thrown, ok := err.(*thrownError)
	if !ok {
		return false
	}
	for len(v.catches) > 0 {
		entry := v.catches[len(v.catches)-1]
		v.catches = v.catches[:len(v.catches)-1]
		if entry.FrameIndex >= len(v.frames) {
			continue // stale: belonged to a call that has since returned
		}
		v.frames = v.frames[:entry.FrameIndex+1]
		v.stack = v.stack[:entry.StackLen]
		v.frames[len(v.frames)-1].IP = entry.HandlerIP
		v.push(thrown.value)
		return true
	}
	return false
}

func (v *VM) binaryAdd() error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	switch {
	case a.Kind == KString && b.Kind == KString:
		v.push(NewString(a.Str + b.Str))
	case a.Kind == KList && b.Kind == KList:
		items := make([]Value, 0, len(a.List.Items)+len(b.List.Items))
		items = append(items, a.List.Items...)
		items = append(items, b.List.Items...)
		v.push(NewList(items))
	case a.Kind == KInt && b.Kind == KInt:
		v.push(NewInt(a.Int + b.Int))
	case isNumeric(a) && isNumeric(b):
		v.push(NewFloat(asFloat(a) + asFloat(b)))
	default:
		return panicf("cannot add %s and %s", a.TypeName(), b.TypeName())
	}
	return nil
}

func isNumeric(v Value) bool { return v.Kind == KInt || v.Kind == KFloat }

func asFloat(v Value) float64 {
	if v.Kind == KInt {
		return float64(v.Int)
	}
	return v.Float
}

func (v *VM) binaryArith(op Op) error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return panicf("arithmetic on non-numeric %s and %s", a.TypeName(), b.TypeName())
	}
	if a.Kind == KInt && b.Kind == KInt {
		switch op {
		case OpSubtract:
			v.push(NewInt(a.Int - b.Int))
		case OpMultiply:
			v.push(NewInt(a.Int * b.Int))
		case OpDivide:
			if b.Int == 0 {
				return panicf("division by zero")
			}
			v.push(NewInt(a.Int / b.Int))
		case OpModulo:
			if b.Int == 0 {
				return panicf("modulo by zero")
			}
			v.push(NewInt(a.Int % b.Int))
		}
		return nil
	}
	af, bf := asFloat(a), asFloat(b)
	switch op {
	case OpSubtract:
		v.push(NewFloat(af - bf))
	case OpMultiply:
		v.push(NewFloat(af * bf))
	case OpDivide:
		if bf == 0 {
			return panicf("division by zero")
		}
		v.push(NewFloat(af / bf))
	case OpModulo:
		if bf == 0 {
			return panicf("modulo by zero")
		}
		v.push(NewFloat(mod(af, bf)))
	}
	return nil
}

func mod(a, b float64) float64 {
	for a >= b {
		a -= b
	}
	return a
}

func (v *VM) compare(op Op) error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return panicf("comparison on non-numeric %s and %s", a.TypeName(), b.TypeName())
	}
	af, bf := asFloat(a), asFloat(b)
	var result bool
	switch op {
	case OpGreater:
		result = af > bf
	case OpGreaterEqual:
		result = af >= bf
	case OpLess:
		result = af < bf
	case OpLessEqual:
		result = af <= bf
	}
	v.push(NewBool(result))
	return nil
}

func (v *VM) index() error {
	idx, err := v.pop()
	if err != nil {
		return err
	}
	obj, err := v.pop()
	if err != nil {
		return err
	}
	switch obj.Kind {
	case KList:
		i, err := nonNegativeIndex(idx, len(obj.List.Items))
		if err != nil {
			return err
		}
		v.push(obj.List.Items[i])
	case KDict:
		if idx.Kind != KString {
			return panicf("Dict index must be a String")
		}
		val, ok := obj.Dict.Items[idx.Str]
		if !ok {
			return panicf("missing key %q", idx.Str)
		}
		v.push(val)
	case KString:
		i, err := nonNegativeIndex(idx, len(obj.Str))
		if err != nil {
			return err
		}
		v.push(NewString(string(obj.Str[i])))
	default:
		return panicf("cannot index %s", obj.TypeName())
	}
	return nil
}

func nonNegativeIndex(idx Value, length int) (int, error) {
	if idx.Kind != KInt {
		return 0, panicf("index must be an Int")
	}
	if idx.Int < 0 || int(idx.Int) >= length {
		return 0, panicf("index %d out of bounds (length %d)", idx.Int, length)
	}
	return int(idx.Int), nil
}

func (v *VM) setIndex() error {
	val, err := v.pop()
	if err != nil {
		return err
	}
	idx, err := v.pop()
	if err != nil {
		return err
	}
	obj, err := v.pop()
	if err != nil {
		return err
	}
	switch obj.Kind {
	case KList:
		i, err := nonNegativeIndex(idx, len(obj.List.Items))
		if err != nil {
			return err
		}
		items := make([]Value, len(obj.List.Items))
		copy(items, obj.List.Items)
		items[i] = val
		v.push(NewList(items))
	case KDict:
		if idx.Kind != KString {
			return panicf("Dict index must be a String")
		}
		m := make(map[string]Value, len(obj.Dict.Items)+1)
		for k, vv := range obj.Dict.Items {
			m[k] = vv
		}
		m[idx.Str] = val
		v.push(NewDict(m))
	default:
		return panicf("cannot set-index %s", obj.TypeName())
	}
	return nil
}

func (v *VM) slice(inclusive bool) error {
	end, err := v.pop()
	if err != nil {
		return err
	}
	start, err := v.pop()
	if err != nil {
		return err
	}
	obj, err := v.pop()
	if err != nil {
		return err
	}
	if start.Kind != KInt || end.Kind != KInt || start.Int < 0 || end.Int < 0 {
		return panicf("slice bounds must be non-negative Ints")
	}
	e := int(end.Int)
	if inclusive {
		e++
	}
	switch obj.Kind {
	case KString:
		if e > len(obj.Str) || int(start.Int) > e {
			return panicf("slice out of bounds")
		}
		v.push(NewString(obj.Str[start.Int:e]))
	case KList:
		if e > len(obj.List.Items) || int(start.Int) > e {
			return panicf("slice out of bounds")
		}
		items := make([]Value, e-int(start.Int))
		copy(items, obj.List.Items[start.Int:e])
		v.push(NewList(items))
	default:
		return panicf("cannot slice %s", obj.TypeName())
	}
	return nil
}

func (v *VM) getField() error {
	name, err := v.pop()
	if err != nil {
		return err
	}
	obj, err := v.pop()
	if err != nil {
		return err
	}
	if name.Kind != KString {
		return panicf("field name must be a String constant")
	}
	switch obj.Kind {
	case KStruct:
		tmpl := v.structTemplates[obj.Struct.Template]
		for i, f := range tmpl.Fields {
			if f == name.Str {
				v.push(obj.Struct.Fields[i])
				return nil
			}
		}
		return panicf("struct %s has no field %q", tmpl.Name, name.Str)
	case KDict:
		val, ok := obj.Dict.Items[name.Str]
		if !ok {
			return panicf("missing key %q", name.Str)
		}
		v.push(val)
	case KError:
		tmpl := v.program.Errors[obj.Error.Template]
		for i, f := range tmpl.FieldNames {
			if f == name.Str {
				v.push(obj.Error.Fields[i])
				return nil
			}
		}
		return panicf("error %s has no field %q", tmpl.ErrorName, name.Str)
	default:
		return panicf("cannot get field %q of %s", name.Str, obj.TypeName())
	}
	return nil
}

func (v *VM) makeStructPositional(templateIndex int) error {
	tmpl := v.structTemplates[templateIndex]
	fields, err := v.popN(len(tmpl.Fields))
	if err != nil {
		return err
	}
	v.push(NewStruct(templateIndex, fields))
	return nil
}

func (v *VM) makeStructNamed(templateIndex int) error {
	tmpl := v.structTemplates[templateIndex]
	vals, err := v.popN(len(tmpl.Fields) * 2)
	if err != nil {
		return err
	}
	byName := make(map[string]Value, len(tmpl.Fields))
	for i := 0; i < len(vals); i += 2 {
		byName[vals[i].Str] = vals[i+1]
	}
	fields := make([]Value, len(tmpl.Fields))
	for i, f := range tmpl.Fields {
		fields[i] = byName[f]
	}
	v.push(NewStruct(templateIndex, fields))
	return nil
}

func (v *VM) typeIs(spec *TypeCheckSpec) error {
	val, err := v.pop()
	if err != nil {
		return err
	}
	var result bool
	switch spec.Kind {
	case TypeBool:
		result = val.Kind == KBool
	case TypeInt:
		result = val.Kind == KInt
	case TypeFloat:
		result = val.Kind == KFloat
	case TypeString:
		result = val.Kind == KString
	case TypeNil:
		result = val.Kind == KNil
	case TypeStructName:
		result = val.Kind == KStruct && v.structTemplates[val.Struct.Template].Name == spec.Name
	case TypeEnumName:
		result = val.Kind == KEnumVariant && val.Enum.Enum == spec.Name
	case TypeErrorName:
		result = val.Kind == KError && v.program.Errors[val.Error.Template].ErrorName == spec.Name &&
			(spec.Variant == "" || v.program.Errors[val.Error.Template].VariantName == spec.Variant)
	case TypeOptional:
		result = true // any value (including Nil) satisfies an Optional check
	}
	v.push(NewBool(result))
	return nil
}

// call expects [callee, arg1...argN] on top of the stack (spec §4.8).
func (v *VM) call(argCount int) error {
	args, err := v.popN(argCount)
	if err != nil {
		return err
	}
	callee, err := v.pop()
	if err != nil {
		return err
	}

	var functionIndex int
	var captures []Value
	switch callee.Kind {
	case KFunction:
		functionIndex = callee.FunctionIndex
	case KClosure:
		functionIndex = callee.Closure.FunctionIndex
		captures = callee.Closure.Captures
	default:
		return panicf("cannot call a value of type %s", callee.TypeName())
	}

	fn := v.program.Functions[functionIndex]
	if argCount != fn.Arity {
		return panicf("%s expects %d arguments, got %d", fn.Name, fn.Arity, argCount)
	}

	// Slot 0 is the callee itself (spec §4.8: "local slot i = stack[start+1+i]");
	// captures occupy the slots immediately ahead of the declared parameters.
	stackStart := len(v.stack)
	v.push(callee)
	for _, c := range captures {
		v.push(c)
	}
	for _, a := range args {
		v.push(a)
	}
	v.frames = append(v.frames, Frame{Chunk: FunctionChunkRef(functionIndex), StackStart: stackStart})
	return nil
}

func (v *VM) builtinCall(instr Instruction) error {
	args, err := v.popN(instr.B)
	if err != nil {
		return err
	}
	fn, ok := v.builtins[instr.Str]
	if !ok {
		return panicf("unknown builtin %q", instr.Str)
	}
	result, err := fn(v, args)
	if err != nil {
		return err
	}
	v.push(result)
	return nil
}
