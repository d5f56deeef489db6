package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/lexer"
)

func parse(src string) ast.Node {
	return New(lexer.New(src)).Parse()
}

func TestParseGlobalDeclaration(t *testing.T) {
	root := parse(`int x, y;`)

	assert.Equal(t, ast.Program, root.Tag)
	assert.Equal(t, 2, len(root.Children))
	assert.Equal(t, ast.VariableDeclaration, root.Children[0].Tag)
	assert.Equal(t, "x", root.Children[0].Attr(ast.KeyName))
	assert.Equal(t, "int", root.Children[0].Attr(ast.KeyType))
	assert.Equal(t, "y", root.Children[1].Attr(ast.KeyName))
}

func TestParseFunctionDeclaration(t *testing.T) {
	root := parse(`int f(int a, float b);`)

	assert.Equal(t, 1, len(root.Children))
	decl := root.Children[0]
	assert.Equal(t, ast.FunctionDeclaration, decl.Tag)
	assert.Equal(t, "f", decl.Attr(ast.KeyName))
	assert.Equal(t, "int", decl.Attr(ast.KeyReturnType))
	assert.Equal(t, 2, len(decl.Children))
	assert.Equal(t, "a", decl.Children[0].Attr(ast.KeyName))
	assert.Equal(t, "float", decl.Children[1].Attr(ast.KeyType))
}

func TestParseVoidFunctionWithVoidParams(t *testing.T) {
	root := parse(`void main(void) { }`)

	assert.Equal(t, 1, len(root.Children))
	fn := root.Children[0]
	assert.Equal(t, ast.FunctionDefinition, fn.Tag)
	assert.Equal(t, "void", fn.Attr(ast.KeyReturnType))
	assert.Equal(t, 1, len(fn.Children))
	assert.Equal(t, ast.VoidParameters, fn.Children[0].Tag)
}

func TestParseFunctionBodyOrdering(t *testing.T) {
	root := parse(`int main(int argc) { int x; x = 1; return x; }`)

	fn := root.Children[0]
	// parameter, then local declaration, then statements, in that order.
	assert.Equal(t, ast.Parameter, fn.Children[0].Tag)
	assert.Equal(t, ast.VariableDeclaration, fn.Children[1].Tag)
	assert.Equal(t, ast.StatementAssignment, fn.Children[2].Tag)
	assert.Equal(t, ast.StatementReturn, fn.Children[3].Tag)
}

func TestParseIfElse(t *testing.T) {
	root := parse(`int main(void) { if (1) x = 1; else x = 2; }`)

	stmt := root.Children[0].Children[1]
	assert.Equal(t, ast.StatementIf, stmt.Tag)
	assert.Equal(t, 3, len(stmt.Children))
	assert.Equal(t, ast.ExpressionLiteral, stmt.Children[0].Tag)
	assert.Equal(t, ast.StatementAssignment, stmt.Children[1].Tag)
	assert.Equal(t, ast.StatementAssignment, stmt.Children[2].Tag)
}

func TestParseWhile(t *testing.T) {
	root := parse(`int main(void) { while (x) x = x - 1; }`)

	stmt := root.Children[0].Children[1]
	assert.Equal(t, ast.StatementWhile, stmt.Tag)
	assert.Equal(t, 2, len(stmt.Children))
}

func TestParseReadWrite(t *testing.T) {
	root := parse(`int main(void) { read(x); write("hi"); write(x); }`)

	body := root.Children[0].Children[1:]
	assert.Equal(t, ast.StatementRead, body[0].Tag)
	assert.Equal(t, "x", body[0].Attr(ast.KeyName))

	assert.Equal(t, ast.StatementWrite, body[1].Tag)
	assert.Equal(t, ast.StringLiteral, body[1].Children[0].Tag)
	assert.Equal(t, "hi", body[1].Children[0].Attr(ast.KeyValue))

	assert.Equal(t, ast.StatementWrite, body[2].Tag)
	assert.Equal(t, ast.ExpressionVariable, body[2].Children[0].Tag)
}

func TestParseCallStatementAndExpression(t *testing.T) {
	root := parse(`int main(void) { f(1, 2); x = f(1); }`)

	body := root.Children[0].Children[1:]
	assert.Equal(t, ast.StatementFunctionCall, body[0].Tag)
	assert.Equal(t, 2, len(body[0].Children))

	assign := body[1]
	assert.Equal(t, ast.ExpressionFunctionCall, assign.Children[0].Tag)
}

func TestParseExpressionIsRightAssociative(t *testing.T) {
	root := parse(`int main(void) { x = 1 + 2 + 3; }`)

	rhs := root.Children[0].Children[1].Children[0]
	assert.Equal(t, ast.ExpressionBinaryOperation, rhs.Tag)
	assert.Equal(t, "+", rhs.Attr(ast.KeyValue))
	// The right child of the outer "+" is itself a binary "+", i.e. 1 + (2 + 3).
	assert.Equal(t, ast.ExpressionLiteral, rhs.Children[0].Tag)
	assert.Equal(t, ast.ExpressionBinaryOperation, rhs.Children[1].Tag)
}

func TestParseParenthesisedExpressionMarksAttribute(t *testing.T) {
	root := parse(`int main(void) { x = (1 + 2); }`)

	rhs := root.Children[0].Children[1].Children[0]
	assert.Equal(t, "true", rhs.Attr(ast.KeyParenthesised))
}

func TestParseUnaryOperators(t *testing.T) {
	root := parse(`int main(void) { if (!0) x = -1; }`)

	ifStmt := root.Children[0].Children[1]
	cond := ifStmt.Children[0]
	assert.Equal(t, ast.ExpressionUnaryOperation, cond.Tag)
	assert.Equal(t, "!", cond.Attr(ast.KeyValue))

	rhs := ifStmt.Children[1].Children[0]
	assert.Equal(t, ast.ExpressionUnaryOperation, rhs.Tag)
	assert.Equal(t, "-", rhs.Attr(ast.KeyValue))
}

func TestParseEmptyStatementAndBlock(t *testing.T) {
	root := parse(`int main(void) { ; { ; } }`)

	body := root.Children[0].Children[1:]
	assert.Equal(t, ast.StatementEmpty, body[0].Tag)
	assert.Equal(t, ast.StatementList, body[1].Tag)
	assert.Equal(t, ast.StatementEmpty, body[1].Children[0].Tag)
}

func TestParseMultipleFunctionDeclarationsInOneStatement(t *testing.T) {
	root := parse(`int f(void), g(int x);`)

	assert.Equal(t, 2, len(root.Children))
	assert.Equal(t, "f", root.Children[0].Attr(ast.KeyName))
	assert.Equal(t, "g", root.Children[1].Attr(ast.KeyName))
}

func TestParserDeterminism(t *testing.T) {
	src := `int g; int add(int a, int b) { return a + b; } void main(void) { g = add(1, 2); write(g); }`

	var prev string
	for i := 0; i < 3; i++ {
		root := parse(src)
		var sb sbWriter
		root.Print(&sb)
		if i == 0 {
			prev = sb.data
		} else {
			assert.Equal(t, prev, sb.data)
		}
	}
}

// sbWriter is a minimal io.Writer, avoiding a strings.Builder import just
// for this one determinism check.
type sbWriter struct{ data string }

func (w *sbWriter) Write(p []byte) (int, error) {
	w.data += string(p)
	return len(p), nil
}
