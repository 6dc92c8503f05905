package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bentruyman/tea/internal/compiler/stdlib"
	"github.com/bentruyman/tea/internal/compiler/vm"
)

// The VM pre-registers CliResult/CliParseResult/ProcessResult ahead of any
// user struct (vm.BuiltinStructCount); these are their fixed indices.
const (
	templateCliResult      = 0
	templateCliParseResult = 1
	templateProcessResult  = 2
)

// builtinOptions carries the bits of driver state an intrinsic needs that
// aren't part of its call arguments: the program's own argv and, for a
// test run, the source-relative path assert_snapshot resolves against.
type builtinOptions struct {
	ProgramArgs []string
	TestRelPath string
}

// registerBuiltins wires every stdlib.Kind to a real OS-backed
// implementation (spec §1: the filesystem/process/json/assert intrinsics
// are external collaborators; this is where the driver supplies them).
func registerBuiltins(v *vm.VM, opts builtinOptions) {
	v.RegisterBuiltin(string(stdlib.KindFsReadText), biFsReadText)
	v.RegisterBuiltin(string(stdlib.KindFsWriteText), biFsWriteText)
	v.RegisterBuiltin(string(stdlib.KindFsExists), biFsExists)
	v.RegisterBuiltin(string(stdlib.KindEnvGet), biEnvGet)
	v.RegisterBuiltin(string(stdlib.KindProcessRun), biProcessRun)
	v.RegisterBuiltin(string(stdlib.KindUtilLen), biUtilLen)
	v.RegisterBuiltin(string(stdlib.KindUtilToString), biUtilToString)
	v.RegisterBuiltin(string(stdlib.KindUtilRange), biUtilRange)
	v.RegisterBuiltin(string(stdlib.KindJSONEncode), biJSONEncode)
	v.RegisterBuiltin(string(stdlib.KindJSONDecode), biJSONDecode)
	v.RegisterBuiltin(string(stdlib.KindAssertEqual), biAssertEqual)
	v.RegisterBuiltin(string(stdlib.KindAssertTrue), biAssertTrue)

	args := opts.ProgramArgs
	v.RegisterBuiltin(string(stdlib.KindEnvArgs), func(_ *vm.VM, _ []vm.Value) (vm.Value, error) {
		items := make([]vm.Value, len(args))
		for i, a := range args {
			items[i] = vm.NewString(a)
		}
		return vm.NewList(items), nil
	})
	v.RegisterBuiltin(string(stdlib.KindCliArgs), func(_ *vm.VM, _ []vm.Value) (vm.Value, error) {
		return cliArgs(args), nil
	})
	v.RegisterBuiltin(string(stdlib.KindCliParse), func(_ *vm.VM, callArgs []vm.Value) (vm.Value, error) {
		return cliParse(args, callArgs)
	})

	testRelPath := opts.TestRelPath
	v.RegisterBuiltin(string(stdlib.KindAssertSnapshot), func(m *vm.VM, callArgs []vm.Value) (vm.Value, error) {
		if len(callArgs) != 2 {
			return vm.Nil(), fmt.Errorf("assert_snapshot expects 2 arguments, got %d", len(callArgs))
		}
		if err := m.AssertSnapshot(testRelPath, callArgs[0].Str, callArgs[1].String()); err != nil {
			return vm.Nil(), err
		}
		return vm.Nil(), nil
	})
}

func biFsReadText(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("fs.read_text expects 1 argument, got %d", len(args))
	}
	data, err := os.ReadFile(args[0].Str)
	if err != nil {
		return vm.Nil(), fmt.Errorf("reading %s: %w", args[0].Str, err)
	}
	return vm.NewString(string(data)), nil
}

func biFsWriteText(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 2 {
		return vm.Nil(), fmt.Errorf("fs.write_text expects 2 arguments, got %d", len(args))
	}
	if err := os.WriteFile(args[0].Str, []byte(args[1].Str), 0o644); err != nil {
		return vm.Nil(), fmt.Errorf("writing %s: %w", args[0].Str, err)
	}
	return vm.Nil(), nil
}

func biFsExists(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("fs.exists expects 1 argument, got %d", len(args))
	}
	_, err := os.Stat(args[0].Str)
	return vm.NewBool(err == nil), nil
}

func biEnvGet(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("env.get expects 1 argument, got %d", len(args))
	}
	val, ok := os.LookupEnv(args[0].Str)
	if !ok {
		return vm.Nil(), nil
	}
	return vm.NewString(val), nil
}

// biProcessRun shells out and reports CliResult-adjacent ProcessResult{
// stdout, stderr, exitCode} rather than failing the VM on a nonzero exit —
// mirroring a shell's own convention that a failed command is a value, not
// an exception.
func biProcessRun(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 2 {
		return vm.Nil(), fmt.Errorf("process.run expects 2 arguments, got %d", len(args))
	}
	if args[1].Kind != vm.KList {
		return vm.Nil(), fmt.Errorf("process.run expects a List of argument strings")
	}
	argv := make([]string, len(args[1].List.Items))
	for i, item := range args[1].List.Items {
		argv[i] = item.Str
	}

	cmd := exec.Command(args[0].Str, argv...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return vm.Nil(), fmt.Errorf("running %s: %w", args[0].Str, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return vm.NewStruct(templateProcessResult, []vm.Value{
		vm.NewString(stdout.String()),
		vm.NewString(stderr.String()),
		vm.NewInt(int64(exitCode)),
	}), nil
}

func biUtilLen(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("util.len expects 1 argument, got %d", len(args))
	}
	switch args[0].Kind {
	case vm.KList:
		return vm.NewInt(int64(len(args[0].List.Items))), nil
	case vm.KDict:
		return vm.NewInt(int64(len(args[0].Dict.Items))), nil
	case vm.KString:
		return vm.NewInt(int64(len([]rune(args[0].Str)))), nil
	default:
		return vm.Nil(), fmt.Errorf("len is not defined for %s", args[0].TypeName())
	}
}

func biUtilToString(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("to_string expects 1 argument, got %d", len(args))
	}
	return vm.NewString(args[0].String()), nil
}

// biUtilRange backs the `a..b`/`a...b` range expression (codegen.genRange):
// Start, End, and an inclusive Bool flag, in that argument order.
func biUtilRange(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 3 {
		return vm.Nil(), fmt.Errorf("range expects 3 arguments, got %d", len(args))
	}
	start, end, inclusive := args[0].Int, args[1].Int, args[2].Bool
	if inclusive {
		end++
	}
	if end < start {
		return vm.NewList(nil), nil
	}
	items := make([]vm.Value, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, vm.NewInt(i))
	}
	return vm.NewList(items), nil
}

func biJSONEncode(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("json.encode expects 1 argument, got %d", len(args))
	}
	data, err := json.Marshal(valueToJSON(args[0]))
	if err != nil {
		return vm.Nil(), fmt.Errorf("encoding JSON: %w", err)
	}
	return vm.NewString(string(data)), nil
}

func biJSONDecode(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("json.decode expects 1 argument, got %d", len(args))
	}
	var decoded any
	if err := json.Unmarshal([]byte(args[0].Str), &decoded); err != nil {
		return vm.Nil(), fmt.Errorf("decoding JSON: %w", err)
	}
	return jsonToValue(decoded), nil
}

func biAssertEqual(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 2 {
		return vm.Nil(), fmt.Errorf("assert_equal expects 2 arguments, got %d", len(args))
	}
	if !vm.Equal(args[0], args[1]) {
		return vm.Nil(), fmt.Errorf("assert_equal failed: expected %s, got %s", args[0].String(), args[1].String())
	}
	return vm.Nil(), nil
}

func biAssertTrue(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Nil(), fmt.Errorf("assert_true expects 1 argument, got %d", len(args))
	}
	if !args[0].Truthy() {
		return vm.Nil(), fmt.Errorf("assert_true failed: got %s", args[0].String())
	}
	return vm.Nil(), nil
}

// valueToJSON converts a tea Value into the interface{} shape
// encoding/json expects, for std.json.encode.
func valueToJSON(v vm.Value) any {
	switch v.Kind {
	case vm.KNil:
		return nil
	case vm.KBool:
		return v.Bool
	case vm.KInt:
		return v.Int
	case vm.KFloat:
		return v.Float
	case vm.KString:
		return v.Str
	case vm.KList:
		items := make([]any, len(v.List.Items))
		for i, item := range v.List.Items {
			items[i] = valueToJSON(item)
		}
		return items
	case vm.KDict:
		obj := make(map[string]any, len(v.Dict.Items))
		for k, item := range v.Dict.Items {
			obj[k] = valueToJSON(item)
		}
		return obj
	default:
		return v.String()
	}
}

// jsonToValue converts a decoded encoding/json value back into a tea
// Value, for std.json.decode. JSON numbers always decode as Float, since
// encoding/json has no integer/float distinction of its own.
func jsonToValue(x any) vm.Value {
	switch t := x.(type) {
	case nil:
		return vm.Nil()
	case bool:
		return vm.NewBool(t)
	case float64:
		return vm.NewFloat(t)
	case string:
		return vm.NewString(t)
	case []any:
		items := make([]vm.Value, len(t))
		for i, item := range t {
			items[i] = jsonToValue(item)
		}
		return vm.NewList(items)
	case map[string]any:
		obj := make(map[string]vm.Value, len(t))
		for k, item := range t {
			obj[k] = jsonToValue(item)
		}
		return vm.NewDict(obj)
	default:
		return vm.Nil()
	}
}

// cliArgs splits argv into CliResult{args, flags}: `--name=value` or
// `--name value` tokens become flags, everything else is a positional arg.
func cliArgs(argv []string) vm.Value {
	args, flags := splitFlags(argv, nil)
	items := make([]vm.Value, len(args))
	for i, a := range args {
		items[i] = vm.NewString(a)
	}
	flagItems := make(map[string]vm.Value, len(flags))
	for k, v := range flags {
		flagItems[k] = vm.NewString(v)
	}
	return vm.NewStruct(templateCliResult, []vm.Value{vm.NewList(items), vm.NewDict(flagItems)})
}

// cliParse extracts only the flag names listed in callArgs[0] from argv,
// returning CliParseResult{values, remaining}: named flags not present in
// that list are left untouched in remaining.
func cliParse(argv []string, callArgs []vm.Value) (vm.Value, error) {
	if len(callArgs) != 1 || callArgs[0].Kind != vm.KList {
		return vm.Nil(), fmt.Errorf("cli.parse expects 1 List argument")
	}
	wanted := make(map[string]bool, len(callArgs[0].List.Items))
	for _, item := range callArgs[0].List.Items {
		wanted[item.Str] = true
	}

	remaining, flags := splitFlags(argv, wanted)
	values := make(map[string]vm.Value, len(flags))
	for k, v := range flags {
		values[k] = vm.NewString(v)
	}

	remainingItems := make([]vm.Value, len(remaining))
	for i, r := range remaining {
		remainingItems[i] = vm.NewString(r)
	}
	return vm.NewStruct(templateCliParseResult, []vm.Value{vm.NewDict(values), vm.NewList(remainingItems)}), nil
}

// splitFlags separates argv into positional arguments and `--name[=value]`
// flags. When only is non-nil, a `--name` token not present in only is
// treated as a positional argument instead of a flag.
func splitFlags(argv []string, only map[string]bool) ([]string, map[string]string) {
	var positional []string
	flags := map[string]string{}
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if !strings.HasPrefix(a, "--") {
			positional = append(positional, a)
			continue
		}
		name := strings.TrimPrefix(a, "--")
		value := "true"
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value = name[:eq], name[eq+1:]
		}
		if only != nil && !only[name] {
			positional = append(positional, a)
			continue
		}
		if value == "true" && i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "--") {
			value = argv[i+1]
			i++
		}
		flags[name] = value
	}
	return positional, flags
}
