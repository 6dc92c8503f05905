// Package stdlib is the compiler's view of the standard library (spec §6):
// a fixed table of module paths to member bindings. The VM dispatches a
// BuiltinCall by symbolic kind name; this package only answers "does
// std.fs have a member named read_text, and if so what does it look like
// and what kind identifies it at runtime" — the intrinsic's actual
// filesystem/process/json behavior is an external collaborator (spec §1),
// wired in by cmd/tea at VM construction time via vm.RegisterBuiltin.
package stdlib

import "github.com/bentruyman/tea/internal/compiler/types"

// Kind identifies a stdlib member at the bytecode level (BuiltinCall{kind,
// arg_count}); it doubles as the string key vm.RegisterBuiltin expects.
// KindUtilRange has no `std.util` entry below: it backs the `a..b` range
// expression, a language construct rather than a stdlib call, but is
// dispatched through the same BuiltinCall mechanism as everything else.
type Kind string

const (
	KindPrint          Kind = "Print"
	KindFsReadText     Kind = "FsReadText"
	KindFsWriteText    Kind = "FsWriteText"
	KindFsExists       Kind = "FsExists"
	KindEnvGet         Kind = "EnvGet"
	KindEnvArgs        Kind = "EnvArgs"
	KindProcessRun     Kind = "ProcessRun"
	KindUtilLen        Kind = "UtilLen"
	KindUtilToString   Kind = "UtilToString"
	KindJSONEncode     Kind = "JsonEncode"
	KindJSONDecode     Kind = "JsonDecode"
	KindAssertEqual    Kind = "AssertEqual"
	KindAssertTrue     Kind = "AssertTrue"
	KindAssertSnapshot Kind = "AssertSnapshot"
	KindUtilRange      Kind = "UtilRange"
	KindCliArgs        Kind = "CliArgs"
	KindCliParse       Kind = "CliParse"
)

// Member is one callable binding exposed under `alias.member(args…)`.
type Member struct {
	Kind      Kind
	Signature types.Type
}

// Module is a single `std.<name>` or `support.<name>` binding table (spec
// §4.4: stdlib aliases are never file-loaded; the module expander leaves
// their member expressions intact for the code generator to resolve here).
type Module map[string]Member

var modules = map[string]Module{
	"std.io": {
		"print": {Kind: KindPrint, Signature: types.Function([]types.Type{types.Simple(types.String)}, types.Simple(types.Nil))},
	},
	"std.fs": {
		"read_text":  {Kind: KindFsReadText, Signature: types.Function([]types.Type{types.Simple(types.String)}, types.Simple(types.String))},
		"write_text": {Kind: KindFsWriteText, Signature: types.Function([]types.Type{types.Simple(types.String), types.Simple(types.String)}, types.Simple(types.Nil))},
		"exists":     {Kind: KindFsExists, Signature: types.Function([]types.Type{types.Simple(types.String)}, types.Simple(types.Bool))},
	},
	"std.env": {
		"get":  {Kind: KindEnvGet, Signature: types.Function([]types.Type{types.Simple(types.String)}, types.Optional(types.Simple(types.String)))},
		"args": {Kind: KindEnvArgs, Signature: types.Function(nil, types.List(types.Simple(types.String)))},
	},
	"std.process": {
		"run": {Kind: KindProcessRun, Signature: types.Function([]types.Type{types.Simple(types.String), types.List(types.Simple(types.String))}, types.Struct("ProcessResult", nil))},
	},
	"std.util": {
		"len":       {Kind: KindUtilLen, Signature: types.Function([]types.Type{types.Simple(types.UnknownKind)}, types.Simple(types.Int))},
		"to_string": {Kind: KindUtilToString, Signature: types.Function([]types.Type{types.Simple(types.UnknownKind)}, types.Simple(types.String))},
	},
	"std.json": {
		"encode": {Kind: KindJSONEncode, Signature: types.Function([]types.Type{types.Simple(types.UnknownKind)}, types.Simple(types.String))},
		"decode": {Kind: KindJSONDecode, Signature: types.Function([]types.Type{types.Simple(types.String)}, types.Simple(types.UnknownKind))},
	},
	"std.cli": {
		"args":  {Kind: KindCliArgs, Signature: types.Function(nil, types.Struct("CliResult", nil))},
		"parse": {Kind: KindCliParse, Signature: types.Function([]types.Type{types.List(types.Simple(types.String))}, types.Struct("CliParseResult", nil))},
	},
	"support.assert": {
		"equal":    {Kind: KindAssertEqual, Signature: types.Function([]types.Type{types.Simple(types.UnknownKind), types.Simple(types.UnknownKind)}, types.Simple(types.Nil))},
		"true":     {Kind: KindAssertTrue, Signature: types.Function([]types.Type{types.Simple(types.Bool)}, types.Simple(types.Nil))},
		"snapshot": {Kind: KindAssertSnapshot, Signature: types.Function([]types.Type{types.Simple(types.String), types.Simple(types.UnknownKind)}, types.Simple(types.Nil))},
	},
}

// IsStdlibPath reports whether an import path is a stdlib/support binding
// rather than a file to load (spec §4.4: "Modules from std.* or support.*
// are stdlib bindings").
func IsStdlibPath(path string) bool {
	_, ok := modules[path]
	return ok
}

// Lookup resolves `alias.member` against the module bound to path,
// returning the Member the checker and code generator need.
func Lookup(path, member string) (Member, bool) {
	mod, ok := modules[path]
	if !ok {
		return Member{}, false
	}
	m, ok := mod[member]
	return m, ok
}
