package emitter

import (
	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/diag"
)

// emitExpression evaluates node and leaves its scalar result in r8. Binary
// operations need two live values at once; since r8 is the only dedicated
// expression register, the left operand is evaluated first and pushed, the
// right operand evaluated into r8 and moved to r9, and the left popped back
// into r8 before combining (so the result is r8 <op> r9) — an explicit spill/reload the spec's single-register
// convention doesn't itself need to describe, but which is required to
// implement it.
func (e *Emitter) emitExpression(node ast.Node, body *bufferedText) {
	switch node.Tag {
	case ast.ExpressionLiteral:
		e.emitLiteral(node, body)
	case ast.ExpressionVariable:
		e.emitVariableRead(node, body)
	case ast.ExpressionUnaryOperation:
		e.emitUnary(node, body)
	case ast.ExpressionBinaryOperation:
		e.emitBinary(node, body)
	case ast.ExpressionFunctionCall:
		e.emitCall(node, body)
		body.Printf("  mov  r8, rax\n")
	default:
		diag.Fatalf(diag.Emitter, "unexpected expression node %s", node.Tag)
	}
}

func (e *Emitter) emitLiteral(node ast.Node, body *bufferedText) {
	if node.Attr(ast.KeyType) == "float" {
		diag.Fatalf(diag.Emitter, "Floats not supported yet")
	}
	body.Printf("  mov  r8, %s\n", node.Attr(ast.KeyValue))
}

func (e *Emitter) emitVariableRead(node ast.Node, body *bufferedText) {
	name := node.Attr(ast.KeyName)
	if e.resolveVariableType(name) == "float" {
		diag.Fatalf(diag.Emitter, "Floats not supported yet")
	}
	body.Printf("  mov  r8, qword %s\n", e.variableOperand(name))
}

func (e *Emitter) emitUnary(node ast.Node, body *bufferedText) {
	e.emitExpression(node.Children[0], body)
	switch node.Attr(ast.KeyValue) {
	case "-":
		body.Printf("  neg  r8\n")
	case "!":
		body.Printf("  cmp  r8, 0\n")
		body.Printf("  sete al\n")
		body.Printf("  movzx r8, al\n")
	default:
		diag.Fatalf(diag.Emitter, "unknown unary operator %q", node.Attr(ast.KeyValue))
	}
}

func (e *Emitter) emitBinary(node ast.Node, body *bufferedText) {
	lhs, rhs := node.Children[0], node.Children[1]

	e.emitExpression(lhs, body)
	body.Printf("  push r8\n")
	e.emitExpression(rhs, body)
	body.Printf("  mov  r9, r8\n")
	body.Printf("  pop  r8\n")

	op := node.Attr(ast.KeyValue)
	switch op {
	case "+":
		body.Printf("  add  r8, r9\n")
	case "-":
		body.Printf("  sub  r8, r9\n")
	case "*":
		body.Printf("  imul r8, r9\n")
	case "/":
		body.Printf("  mov  rax, r8\n")
		body.Printf("  cqo\n")
		body.Printf("  idiv r9\n")
		body.Printf("  mov  r8, rax\n")
	case "==":
		e.emitCompare(body, "sete")
	case "!=":
		e.emitCompare(body, "setne")
	case "<":
		e.emitCompare(body, "setl")
	case "<=":
		e.emitCompare(body, "setle")
	case ">":
		e.emitCompare(body, "setg")
	case ">=":
		e.emitCompare(body, "setge")
	case "&&":
		body.Printf("  cmp  r8, 0\n")
		body.Printf("  setne al\n")
		body.Printf("  cmp  r9, 0\n")
		body.Printf("  setne cl\n")
		body.Printf("  and  al, cl\n")
		body.Printf("  movzx r8, al\n")
	case "||":
		body.Printf("  cmp  r8, 0\n")
		body.Printf("  setne al\n")
		body.Printf("  cmp  r9, 0\n")
		body.Printf("  setne cl\n")
		body.Printf("  or   al, cl\n")
		body.Printf("  movzx r8, al\n")
	default:
		diag.Fatalf(diag.Emitter, "unknown binary operator %q", op)
	}
}

func (e *Emitter) emitCompare(body *bufferedText, setInstr string) {
	body.Printf("  cmp  r8, r9\n")
	body.Printf("  %s al\n", setInstr)
	body.Printf("  movzx r8, al\n")
}

// emitCall lowers a call, used either as a statement or nested in an
// expression (the caller moves rax into r8 in the expression case). Every
// argument is evaluated and pushed before any register is loaded — loading
// argRegisters as each argument is evaluated would let a later argument's
// own nested call clobber an earlier argument's register. Register
// arguments are popped back off in reverse order once all evaluation is
// done; any stack-passed arguments stay pushed for the call and the stack
// is restored afterward.
func (e *Emitter) emitCall(node ast.Node, body *bufferedText) {
	name := node.Attr(ast.KeyName)
	fi, ok := e.functions[name]
	if !ok {
		diag.Fatalf(diag.Emitter, "call to undeclared function '%s'", name)
	}
	if len(node.Children) != len(fi.Parameters) {
		diag.Fatalf(diag.Emitter, "function '%s' expects %d argument(s), got %d", name, len(fi.Parameters), len(node.Children))
	}
	fi.IsCalled = true

	regArgs, stackArgs := node.Children, []ast.Node(nil)
	if len(regArgs) > len(argRegisters) {
		stackArgs = regArgs[len(argRegisters):]
		regArgs = regArgs[:len(argRegisters)]
	}

	for i := len(stackArgs) - 1; i >= 0; i-- {
		e.emitExpression(stackArgs[i], body)
		body.Printf("  push r8\n")
	}
	for _, arg := range regArgs {
		e.emitExpression(arg, body)
		body.Printf("  push r8\n")
	}
	for i := len(regArgs) - 1; i >= 0; i-- {
		body.Printf("  pop  %s\n", argRegisters[i])
	}

	body.Printf("  xor  rax, rax\n")
	body.Printf("  call %s\n", name)
	if len(stackArgs) > 0 {
		body.Printf("  add  rsp, %d\n", 8*len(stackArgs))
	}
}
