package emitter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cmm.dev/compiler/pkg/emitter"
	"cmm.dev/compiler/pkg/lexer"
	"cmm.dev/compiler/pkg/parser"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	root := parser.New(lexer.New(src)).Parse()

	var out strings.Builder
	emitter.New().EmitProgram(root, &out)
	return out.String()
}

func TestEmitProgramHeader(t *testing.T) {
	asm := compile(t, `void main(void) { }`)

	assert.Contains(t, asm, "global main")
	assert.Contains(t, asm, "extern printf")
	assert.Contains(t, asm, "extern scanf")
	assert.Contains(t, asm, "section .data")
	assert.Contains(t, asm, "section .bss")
	assert.Contains(t, asm, "section .text")
}

// Scenario 1 from the spec: a global shadowed by a local of the same name,
// assigned inside an always-true `if`.
func TestEmitGlobalShadowedByLocal(t *testing.T) {
	asm := compile(t, `int x; int main(void) { int x; if (!0) x = 2; }`)

	assert.Contains(t, asm, "gvar_x: resb 8")
	assert.Contains(t, asm, "main:")
	assert.Contains(t, asm, "push rbp")
	assert.Contains(t, asm, "mov  rbp, rsp")
	// the local x lives at offset 0, not the global's label
	assert.Contains(t, asm, "mov  qword [rbp + 0], r8")
	assert.NotContains(t, asm, "mov  qword [rel gvar_x], r8")
}

// Scenario 6 from the spec: write("hi") produces a str_lit0 entry and a
// printf call fed from it.
func TestEmitWriteStringLiteral(t *testing.T) {
	asm := compile(t, `void main(void) { write("hi"); }`)

	assert.Contains(t, asm, `str_lit0: db "hi", 0xA, 0`)
	assert.Contains(t, asm, "lea  rdi, [rel str_lit0]")
	assert.Contains(t, asm, "call printf")
}

func TestEmitWriteIntegerExpression(t *testing.T) {
	asm := compile(t, `void main(void) { write(1 + 2); }`)

	assert.Contains(t, asm, "write_int_fmt")
	assert.Contains(t, asm, "call printf")
}

func TestEmitReadCallsScanf(t *testing.T) {
	asm := compile(t, `int x; void main(void) { read(x); }`)

	assert.Contains(t, asm, "lea  rdi, [rel read_int_fmt]")
	assert.Contains(t, asm, "call scanf")
}

func TestEmitFunctionCallWithArguments(t *testing.T) {
	asm := compile(t, `int add(int a, int b) { return a + b; } void main(void) { write(add(1, 2)); }`)

	assert.Contains(t, asm, "add:")
	assert.Contains(t, asm, "call add")
	// 2 args fit in registers, so no stack cleanup is needed around the call
	assert.NotContains(t, asm, "add  rsp, 16")
}

func TestEmitFunctionCallWithStackArguments(t *testing.T) {
	// 7 arguments: 6 in registers, 1 on the stack.
	asm := compile(t, `int f(int a, int b, int c, int d, int e, int g, int h) { return a; }
	void main(void) { write(f(1, 2, 3, 4, 5, 6, 7)); }`)

	assert.Contains(t, asm, "call f")
	assert.Contains(t, asm, "add  rsp, 8")
}

func TestEmitIfElseLabels(t *testing.T) {
	asm := compile(t, `void main(void) { if (1) write(1); else write(2); }`)

	assert.Contains(t, asm, ".if_true_0:")
	assert.Contains(t, asm, ".if_false_0:")
	assert.Contains(t, asm, ".if_end_0:")
}

func TestEmitWhileLabels(t *testing.T) {
	asm := compile(t, `int x; void main(void) { while (x) x = x - 1; }`)

	assert.Contains(t, asm, ".while_0:")
	assert.Contains(t, asm, ".while_end_0:")
}

func TestEmitNestedIfLabelsAreUnique(t *testing.T) {
	asm := compile(t, `void main(void) { if (1) { if (1) write(1); } else write(2); }`)

	assert.Contains(t, asm, ".if_true_0:")
	assert.Contains(t, asm, ".if_true_1:")
}

func TestEmitReturnJumpsToFunctionEnd(t *testing.T) {
	asm := compile(t, `int f(void) { return 1; } void main(void) { write(f()); }`)

	assert.Contains(t, asm, "jmp  .function_end")
	assert.Contains(t, asm, ".function_end:")
}

func TestEmitIsDeterministic(t *testing.T) {
	src := `int g; int add(int a, int b) { return a + b; } void main(void) { g = add(1, 2); write(g); }`

	first := compile(t, src)
	second := compile(t, src)
	assert.Equal(t, first, second)
}

func TestEmitGlobalsAreSortedForDeterminism(t *testing.T) {
	asm := compile(t, `int z; int a; void main(void) { }`)

	idxA := strings.Index(asm, "gvar_a")
	idxZ := strings.Index(asm, "gvar_z")
	assert.True(t, idxA < idxZ, "globals should be emitted in sorted order")
}

func TestEmitUnaryOperators(t *testing.T) {
	asm := compile(t, `void main(void) { write(-1); write(!0); }`)

	assert.Contains(t, asm, "neg  r8")
	assert.Contains(t, asm, "sete al")
}

func TestEmitBinaryOperators(t *testing.T) {
	src := `void main(void) {
		write(1 + 2); write(1 - 2); write(1 * 2); write(1 / 2);
		write(1 == 2); write(1 != 2); write(1 < 2); write(1 <= 2);
		write(1 > 2); write(1 >= 2); write(1 && 2); write(1 || 2);
	}`
	asm := compile(t, src)

	for _, want := range []string{"add  r8, r9", "sub  r8, r9", "imul r8, r9", "idiv r9",
		"sete al", "setne al", "setl al", "setle al", "setg al", "setge al", "and  al, cl", "or   al, cl"} {
		assert.Contains(t, asm, want)
	}
}
