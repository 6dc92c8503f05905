package main

import (
	"fmt"
	"io"

	"github.com/bentruyman/tea/internal/compiler/ast"
	"github.com/bentruyman/tea/internal/compiler/lexer"
	"github.com/bentruyman/tea/internal/compiler/token"
	"github.com/bentruyman/tea/internal/compiler/vm"
)

// opNames mirrors chunk.go's Op enum order; Op has no Stringer of its own
// since the VM never needs to print an opcode, only execute it.
var opNames = []string{
	"Constant", "GetGlobal", "SetGlobal", "GetLocal", "SetLocal", "Pop",
	"Add", "Subtract", "Multiply", "Divide", "Modulo", "Negate", "Not",
	"Equal", "NotEqual", "Greater", "GreaterEqual", "Less", "LessEqual",
	"Jump", "JumpIfFalse", "JumpIfNil", "Call", "Return", "Print",
	"BuiltinCall", "MakeList", "MakeDict", "Index", "SetIndex", "Slice",
	"DictKeys", "GetField", "MakeStructPositional", "MakeStructNamed",
	"MakeError", "PushCatch", "PopCatch", "Throw", "MakeClosure",
	"ConcatStrings", "AssertNonNil", "TypeIs",
}

func opName(op vm.Op) string {
	i := int(op)
	if i < 0 || i >= len(opNames) {
		return fmt.Sprintf("Op(%d)", i)
	}
	return opNames[i]
}

// dumpTokens lexes src to completion and writes one line per token, for
// `tea run --dump-tokens`.
func dumpTokens(w io.Writer, src string) {
	l := lexer.New(src)
	for {
		tok := l.NextToken()
		fmt.Fprintf(w, "%d:%d\t%-12s %q\n", tok.Pos.Line, tok.Pos.Column, tok.Kind, tok.Literal)
		if tok.Kind == token.EOF {
			break
		}
	}
}

// dumpAST writes one line per top-level statement, for `tea run --emit
// ast`. A full pretty-printer is outside this driver's scope (spec §1):
// this is a debugging aid, not a canonical AST serialization.
func dumpAST(w io.Writer, mod *ast.Module) {
	for _, stmt := range mod.Statements {
		span := stmt.Span()
		fmt.Fprintf(w, "%d:%d\t%T\n", span.Line, span.Column, stmt)
	}
}

// dumpBytecode writes every chunk in program in a flat, instruction-per-line
// form, for `tea run --emit bytecode`.
func dumpBytecode(w io.Writer, program *vm.Program) {
	fmt.Fprintln(w, "main:")
	dumpChunk(w, &program.Chunk)
	for i, fn := range program.Functions {
		fmt.Fprintf(w, "function %d (%s, arity %d):\n", i, fn.Name, fn.Arity)
		dumpChunk(w, &fn.Chunk)
	}
}

func dumpChunk(w io.Writer, c *vm.Chunk) {
	for i, instr := range c.Instructions {
		fmt.Fprintf(w, "  %4d  %-22s A=%d B=%d", i, opName(instr.Op), instr.A, instr.B)
		if instr.Str != "" {
			fmt.Fprintf(w, " %q", instr.Str)
		}
		fmt.Fprintln(w)
	}
}
