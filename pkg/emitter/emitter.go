// Package emitter walks the AST the parser produces and emits NASM-syntax
// x86-64 assembly targeting the System V AMD64 calling convention, calling
// out to libc's printf/scanf for formatted I/O. It is the one pass that
// performs semantic validation: redeclaration, call arity, return-type
// compatibility and the (deliberately unimplemented) float restriction.
package emitter

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/diag"
)

const globalPrefix = "gvar_" // disambiguates global variable labels from register mnemonics

// argRegisters is the System V AMD64 integer-argument register order.
var argRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// Emitter owns the process-wide tables accumulated while walking the AST:
// per-function metadata, global variable types, and the string literals
// collected in the order `write` statements reference them.
type Emitter struct {
	functions map[string]*FunctionInfo
	globals   map[string]string // name -> type
	strings   []string          // string literal bodies, index == label suffix

	out *bufio.Writer
	fn  *FunctionInfo // currently-emitted function, nil at top level
}

// New returns an Emitter with empty tables.
func New() *Emitter {
	return &Emitter{
		functions: map[string]*FunctionInfo{},
		globals:   map[string]string{},
	}
}

// EmitProgram asserts root is a PROGRAM node, then writes the full assembly
// file to w: it processes the tree once to populate symbol tables and
// collect instruction text, then writes the sections in file order. Any
// semantic error halts the process via diag.Fatalf before anything is
// written to w.
func (e *Emitter) EmitProgram(root ast.Node, w io.Writer) {
	if root.Tag != ast.Program {
		diag.Fatalf(diag.Emitter, "root node is not PROGRAM")
	}

	var body bufferedText
	for _, child := range root.Children {
		e.processTopLevel(child, &body)
	}
	e.checkAllCalledFunctionsDefined()

	bw := bufio.NewWriter(w)
	e.out = bw
	e.writeHeader()
	e.writeDataSection()
	e.writeBSSSection()
	fmt.Fprintln(bw, "section .text")
	fmt.Fprint(bw, body.String())
	bw.Flush()
}

// bufferedText accumulates emitted instruction lines before the whole file
// is known to compile successfully — so a mid-emission fatal error never
// leaves a half-written output file on disk.
type bufferedText struct{ lines []string }

func (b *bufferedText) Printf(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *bufferedText) String() string {
	s := ""
	for _, l := range b.lines {
		s += l
	}
	return s
}

func (e *Emitter) writeHeader() {
	fmt.Fprintln(e.out, "global main")
	fmt.Fprintln(e.out, "extern printf")
	fmt.Fprintln(e.out, "extern scanf")
	fmt.Fprintln(e.out)
}

func (e *Emitter) writeDataSection() {
	fmt.Fprintln(e.out, "section .data")
	fmt.Fprintln(e.out, `  read_int_fmt:   db "%lld", 0`)
	fmt.Fprintln(e.out, `  read_float_fmt: db "%lf",  0`)
	fmt.Fprintln(e.out, `  write_int_fmt:  db "%lld", 0xA, 0`)
	fmt.Fprintln(e.out, `  write_flt_fmt:  db "%lf",  0xA, 0`)
	for i, s := range e.strings {
		fmt.Fprintf(e.out, "  str_lit%d: db %s, 0xA, 0\n", i, nasmStringLiteral(s))
	}
	fmt.Fprintln(e.out)
}

func (e *Emitter) writeBSSSection() {
	fmt.Fprintln(e.out, "section .bss")

	names := make([]string, 0, len(e.globals))
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(e.out, "  %s%s: resb 8\n", globalPrefix, name)
	}
	fmt.Fprintln(e.out)
}

// nasmStringLiteral renders s as a NASM double-quoted string literal. The
// source language only allows single-line strings with no escape
// processing, so the only character needing care is an embedded quote,
// which cannot occur (the lexer treats `"` as the closing delimiter).
func nasmStringLiteral(s string) string {
	return `"` + s + `"`
}

// processTopLevel dispatches a PROGRAM child: a VARIABLE_DECLARATION (a
// global), a FUNCTION_DECLARATION (a prototype), or a FUNCTION_DEFINITION
// (a body). Bodies append their instruction text to body; declarations and
// global variables only populate tables.
func (e *Emitter) processTopLevel(node ast.Node, body *bufferedText) {
	switch node.Tag {
	case ast.VariableDeclaration:
		e.declareGlobal(node)
	case ast.FunctionDeclaration:
		e.declareFunction(node)
	case ast.FunctionDefinition:
		e.defineFunction(node, body)
	default:
		diag.Fatalf(diag.Emitter, "unexpected top-level node %s", node.Tag)
	}
}

func (e *Emitter) declareGlobal(node ast.Node) {
	name := node.Attr(ast.KeyName)
	if _, exists := e.globals[name]; exists {
		diag.Fatalf(diag.Emitter, "redeclaration of global variable '%s'", name)
	}
	if _, exists := e.functions[name]; exists {
		diag.Fatalf(diag.Emitter, "redeclaration of global variable '%s'", name)
	}
	e.globals[name] = node.Attr(ast.KeyType)
}

// declareFunction handles a prototype (FUNCTION_DECLARATION): a fresh name
// creates a FunctionInfo; a repeat must match the existing signature
// exactly.
func (e *Emitter) declareFunction(node ast.Node) {
	name := node.Attr(ast.KeyName)
	returnType := node.Attr(ast.KeyReturnType)
	params := paramSignatures(node)

	if existing, ok := e.functions[name]; ok {
		if !existing.sameSignature(returnType, params) {
			diag.Fatalf(diag.Emitter, "declaration of '%s' does not match its previous declaration", name)
		}
		return
	}

	fi := newFunctionInfo(returnType)
	registerParameters(fi, params, name)
	e.functions[name] = fi
}

// registerParameters appends each parameter to fi.Parameters and allocates
// its frame slot, halting on a repeated parameter name. Shared by
// declareFunction and defineFunction's fresh-FunctionInfo path, since a
// function's first mention — declaration or definition, whichever comes
// first — is what establishes its parameter list.
func registerParameters(fi *FunctionInfo, params []paramSig, funcName string) {
	for _, p := range params {
		fi.Parameters = append(fi.Parameters, p.name)
		if !fi.addVariable(p.name, p.typ) {
			diag.Fatalf(diag.Emitter, "redeclaration of parameter '%s' in function '%s'", p.name, funcName)
		}
	}
}

// defineFunction handles a FUNCTION_DEFINITION: validates against any prior
// declaration, marks the function defined, then emits its instruction text.
func (e *Emitter) defineFunction(node ast.Node, body *bufferedText) {
	name := node.Attr(ast.KeyName)
	returnType := node.Attr(ast.KeyReturnType)

	paramNodes, localDeclNodes, stmtNodes := splitFunctionBody(node)
	params := make([]paramSig, 0, len(paramNodes))
	for _, p := range paramNodes {
		if p.Tag == ast.VoidParameters {
			continue
		}
		params = append(params, paramSig{name: p.Attr(ast.KeyName), typ: p.Attr(ast.KeyType)})
	}

	fi, ok := e.functions[name]
	if ok {
		if fi.IsDefined {
			diag.Fatalf(diag.Emitter, "redefinition of function '%s'", name)
		}
		if !fi.sameSignature(returnType, params) {
			diag.Fatalf(diag.Emitter, "definition of '%s' does not match its previous declaration", name)
		}
	} else {
		fi = newFunctionInfo(returnType)
		registerParameters(fi, params, name)
		e.functions[name] = fi
	}
	fi.IsDefined = true

	for _, decl := range localDeclNodes {
		lname := decl.Attr(ast.KeyName)
		if !fi.addVariable(lname, decl.Attr(ast.KeyType)) {
			diag.Fatalf(diag.Emitter, "redeclaration of local variable '%s' in function '%s'", lname, name)
		}
	}

	e.fn = fi
	body.Printf("%s:\n", name)
	body.Printf("  push rbp\n")
	body.Printf("  mov  rbp, rsp\n")
	e.emitParameterSpill(fi, body)
	if frameSlots := len(fi.LocalVars) - len(fi.Parameters); frameSlots > 0 {
		body.Printf("  sub  rsp, %d\n", 8*frameSlots)
	}

	for _, stmt := range stmtNodes {
		e.emitStatement(stmt, body)
	}

	body.Printf("  mov  rax, 0\n")
	body.Printf(".function_end:\n")
	body.Printf("  mov  rsp, rbp\n")
	body.Printf("  pop  rbp\n")
	body.Printf("  ret\n\n")
	e.fn = nil
}

// emitParameterSpill stores the register-passed parameters into their frame
// slots and copies any stack-passed parameters down into the local frame, so
// every parameter is thereafter addressed uniformly via LocalVariable.Offset.
func (e *Emitter) emitParameterSpill(fi *FunctionInfo, body *bufferedText) {
	for i, name := range fi.Parameters {
		offset := fi.LocalVars[name].Offset
		if i < len(argRegisters) {
			body.Printf("  mov  qword [rbp + %d], %s\n", offset, argRegisters[i])
		} else {
			k := i - len(argRegisters)
			body.Printf("  mov  r10, qword [rbp + %d]\n", 8*(k+1))
			body.Printf("  mov  qword [rbp + %d], r10\n", offset)
		}
	}
}

func paramSignatures(node ast.Node) []paramSig {
	sigs := []paramSig{}
	for _, p := range node.Children {
		if p.Tag == ast.VoidParameters {
			continue
		}
		sigs = append(sigs, paramSig{name: p.Attr(ast.KeyName), typ: p.Attr(ast.KeyType)})
	}
	return sigs
}

// splitFunctionBody partitions a FUNCTION_DEFINITION's children into its
// parameter list, its local VARIABLE_DECLARATIONs, and its statement list —
// the parser emits them in exactly that order.
func splitFunctionBody(node ast.Node) (params, locals, stmts []ast.Node) {
	i := 0
	for i < len(node.Children) && (node.Children[i].Tag == ast.Parameter || node.Children[i].Tag == ast.VoidParameters) {
		params = append(params, node.Children[i])
		i++
	}
	for i < len(node.Children) && node.Children[i].Tag == ast.VariableDeclaration {
		locals = append(locals, node.Children[i])
		i++
	}
	stmts = node.Children[i:]
	return
}

func (e *Emitter) checkAllCalledFunctionsDefined() {
	names := make([]string, 0, len(e.functions))
	for name := range e.functions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fi := e.functions[name]
		if fi.IsCalled && !fi.IsDefined {
			diag.Fatalf(diag.Emitter, "call to function '%s' with no existing definition", name)
		}
	}
}
