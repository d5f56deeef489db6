package emitter

import (
	"strconv"

	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/diag"
)

// emitStatement dispatches on tag, appending the statement's instruction
// text to body. e.fn is the function currently being emitted; its If/While
// counters mint the labels this call may need.
func (e *Emitter) emitStatement(node ast.Node, body *bufferedText) {
	switch node.Tag {
	case ast.StatementIf:
		e.emitIf(node, body)
	case ast.StatementWhile:
		e.emitWhile(node, body)
	case ast.StatementReturn:
		e.emitReturn(node, body)
	case ast.StatementRead:
		e.emitRead(node, body)
	case ast.StatementWrite:
		e.emitWrite(node, body)
	case ast.StatementFunctionCall:
		e.emitCallStatement(node, body)
	case ast.StatementAssignment:
		e.emitAssignment(node, body)
	case ast.StatementList:
		for _, child := range node.Children {
			e.emitStatement(child, body)
		}
	case ast.StatementEmpty:
		// nothing to emit
	default:
		diag.Fatalf(diag.Emitter, "unexpected statement node %s", node.Tag)
	}
}

// emitIf lowers `if (cond) then [else alt]` per the label scheme: condition
// in r8, compare to zero, jne into the true branch; an else branch (when
// present) sits between the false jump and the shared end label.
func (e *Emitter) emitIf(node ast.Node, body *bufferedText) {
	n := e.fn.nextIfLabel()
	cond, then := node.Children[0], node.Children[1]
	hasElse := len(node.Children) > 2

	e.emitExpression(cond, body)
	body.Printf("  cmp  r8, 0\n")
	body.Printf("  jne  .if_true_%d\n", n)
	if hasElse {
		body.Printf("  jmp  .if_false_%d\n", n)
	} else {
		body.Printf("  jmp  .if_end_%d\n", n)
	}

	body.Printf(".if_true_%d:\n", n)
	e.emitStatement(then, body)
	body.Printf("  jmp  .if_end_%d\n", n)

	if hasElse {
		body.Printf(".if_false_%d:\n", n)
		e.emitStatement(node.Children[2], body)
		body.Printf("  jmp  .if_end_%d\n", n)
	}

	body.Printf(".if_end_%d:\n", n)
}

func (e *Emitter) emitWhile(node ast.Node, body *bufferedText) {
	n := e.fn.nextWhileLabel()
	cond, loopBody := node.Children[0], node.Children[1]

	body.Printf(".while_%d:\n", n)
	e.emitExpression(cond, body)
	body.Printf("  cmp  r8, 0\n")
	body.Printf("  je   .while_end_%d\n", n)
	e.emitStatement(loopBody, body)
	body.Printf("  jmp  .while_%d\n", n)
	body.Printf(".while_end_%d:\n", n)
}

func (e *Emitter) emitReturn(node ast.Node, body *bufferedText) {
	if len(node.Children) > 0 {
		e.emitExpression(node.Children[0], body)
		body.Printf("  mov  rax, r8\n")
	}
	body.Printf("  jmp  .function_end\n")
}

func (e *Emitter) emitRead(node ast.Node, body *bufferedText) {
	name := node.Attr(ast.KeyName)
	typ := e.resolveVariableType(name)
	if typ == "float" {
		diag.Fatalf(diag.Emitter, "Floats not supported yet")
	}

	body.Printf("  lea  rdi, [rel read_int_fmt]\n")
	body.Printf("  lea  rsi, %s\n", e.variableOperand(name))
	body.Printf("  xor  rax, rax\n")
	body.Printf("  call scanf\n")
}

func (e *Emitter) emitWrite(node ast.Node, body *bufferedText) {
	arg := node.Children[0]

	if arg.Tag == ast.StringLiteral {
		idx := len(e.strings)
		e.strings = append(e.strings, arg.Attr(ast.KeyValue))
		body.Printf("  lea  rdi, [rel str_lit%d]\n", idx)
		body.Printf("  xor  rax, rax\n")
		body.Printf("  call printf\n")
		return
	}

	e.emitExpression(arg, body)
	body.Printf("  lea  rdi, [rel write_int_fmt]\n")
	body.Printf("  mov  rsi, r8\n")
	body.Printf("  xor  rax, rax\n")
	body.Printf("  call printf\n")
}

func (e *Emitter) emitAssignment(node ast.Node, body *bufferedText) {
	name := node.Attr(ast.KeyName)
	typ := e.resolveVariableType(name)
	if typ == "float" {
		diag.Fatalf(diag.Emitter, "Floats not supported yet")
	}

	e.emitExpression(node.Children[0], body)
	body.Printf("  mov  qword %s, r8\n", e.variableOperand(name))
}

// emitCallStatement emits a call used as a statement; the result in rax is
// left unconsumed.
func (e *Emitter) emitCallStatement(node ast.Node, body *bufferedText) {
	e.emitCall(node, body)
}

// variableOperand renders the NASM memory operand for a variable name: a
// local's frame-relative offset, or a global's labeled .bss slot. Locals
// shadow globals within a function, matching the spec's separate-namespace
// rule.
func (e *Emitter) variableOperand(name string) string {
	if e.fn != nil {
		if lv, ok := e.fn.LocalVars[name]; ok {
			return frameOperand(lv.Offset)
		}
	}
	if _, ok := e.globals[name]; ok {
		return "[rel " + globalPrefix + name + "]"
	}
	diag.Fatalf(diag.Emitter, "undeclared identifier '%s'", name)
	return ""
}

// frameOperand renders a local/parameter's slot exactly as the spec's
// per-statement lowering rule for assignment gives it: `[rbp + offset]`.
func frameOperand(offset int) string {
	return "[rbp + " + strconv.Itoa(offset) + "]"
}

func (e *Emitter) resolveVariableType(name string) string {
	if e.fn != nil {
		if lv, ok := e.fn.LocalVars[name]; ok {
			return lv.Type
		}
	}
	if typ, ok := e.globals[name]; ok {
		return typ
	}
	diag.Fatalf(diag.Emitter, "undeclared identifier '%s'", name)
	return ""
}

