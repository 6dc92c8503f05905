package stdlib

import "testing"

func TestIsStdlibPathRecognizesBoundModulesOnly(t *testing.T) {
	cases := map[string]bool{
		"std.io":        true,
		"std.cli":       true,
		"support.assert": true,
		"std.nope":      false,
		"./local/file":  false,
	}
	for path, want := range cases {
		if got := IsStdlibPath(path); got != want {
			t.Errorf("IsStdlibPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLookupResolvesKnownMember(t *testing.T) {
	m, ok := Lookup("std.io", "print")
	if !ok {
		t.Fatalf("expected std.io.print to resolve")
	}
	if m.Kind != KindPrint {
		t.Fatalf("got kind %q, want %q", m.Kind, KindPrint)
	}
}

func TestLookupRejectsUnknownMember(t *testing.T) {
	if _, ok := Lookup("std.io", "nope"); ok {
		t.Fatalf("expected std.io.nope to be absent")
	}
}

func TestLookupRejectsUnknownModule(t *testing.T) {
	if _, ok := Lookup("std.nope", "anything"); ok {
		t.Fatalf("expected std.nope to be absent")
	}
}

func TestCliModuleBindsBuiltinStructConstructors(t *testing.T) {
	args, ok := Lookup("std.cli", "args")
	if !ok {
		t.Fatalf("expected std.cli.args to resolve")
	}
	if args.Kind != KindCliArgs {
		t.Fatalf("got kind %q, want %q", args.Kind, KindCliArgs)
	}
	if args.Signature.Return.Name != "CliResult" {
		t.Fatalf("expected std.cli.args to return CliResult, got %s", args.Signature.Return.String())
	}

	parse, ok := Lookup("std.cli", "parse")
	if !ok {
		t.Fatalf("expected std.cli.parse to resolve")
	}
	if parse.Kind != KindCliParse {
		t.Fatalf("got kind %q, want %q", parse.Kind, KindCliParse)
	}
	if parse.Signature.Return.Name != "CliParseResult" {
		t.Fatalf("expected std.cli.parse to return CliParseResult, got %s", parse.Signature.Return.String())
	}
}
