package main

import (
	"fmt"
	"os"
	"strings"

	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/emitter"
	"cmm.dev/compiler/pkg/lexer"
	"cmm.dev/compiler/pkg/parser"
	"cmm.dev/compiler/pkg/trace"

	"github.com/teris-io/cli"
)

var description = strings.ReplaceAll(`
cmmc compiles a single C-- source file into NASM-syntax x86-64 assembly
targeting the System V AMD64 calling convention, suitable for assembling
and linking against a C runtime providing printf/scanf.
`, "\n", " ")

var Compiler = cli.New(description).
	WithArg(cli.NewArg("input", "The C-- source file to compile").WithType(cli.TypeString)).
	WithOption(cli.NewOption("o", "Output assembly file path").WithChar('o').WithType(cli.TypeString)).
	WithOption(cli.NewOption("v", "Enable verbose debug printing").WithChar('v').WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "ERROR: missing input file")
		return 1
	}

	outputPath := "a.asm"
	if path, ok := options["o"]; ok && path != "" {
		outputPath = path
	}

	_, verbose := options["v"]
	sink := trace.NoOp()
	if verbose {
		sink = trace.New()
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
		return 1
	}

	root := compile(string(source), sink)
	if verbose {
		root.Print(os.Stdout)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to open output file: %s\n", err)
		return 1
	}
	defer out.Close()

	emitter.New().EmitProgram(root, out)
	return 0
}

// compile runs the lexer and parser stages, both of which halt the process
// directly via pkg/diag on the first error — there is nothing for this
// function itself to report.
func compile(source string, sink trace.Sink) ast.Node {
	lex := lexer.New(source).WithTrace(sink)
	p := parser.New(lex).WithTrace(sink)
	return p.Parse()
}

func main() { os.Exit(Compiler.Run(os.Args, os.Stdout)) }
