package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeBuilders(t *testing.T) {
	n := New(ExpressionLiteral).WithAttr(KeyType, "int").WithAttr(KeyValue, "42")
	assert.Equal(t, ExpressionLiteral, n.Tag)
	assert.Equal(t, "int", n.Attr(KeyType))
	assert.Equal(t, "42", n.Attr(KeyValue))
	assert.Equal(t, "", n.Attr(KeyName), "unset attribute reads back as empty string")
}

func TestAddChildPreservesOrder(t *testing.T) {
	root := New(StatementIf)
	cond := New(ExpressionVariable).WithAttr(KeyName, "x")
	then := New(StatementEmpty)
	alt := New(StatementEmpty)

	root.AddChild(cond)
	root.AddChild(then)
	root.AddChild(alt)

	assert.Equal(t, 3, len(root.Children))
	assert.Equal(t, ExpressionVariable, root.Children[0].Tag)
	assert.Equal(t, "x", root.Children[0].Attr(KeyName))
}

func TestPrintIncludesTagAttrsAndChildren(t *testing.T) {
	root := New(Program)
	decl := New(VariableDeclaration).WithAttr(KeyName, "x").WithAttr(KeyType, "int")
	root.AddChild(decl)

	var sb strings.Builder
	root.Print(&sb)
	out := sb.String()

	assert.Contains(t, out, "Tag: PROGRAM")
	assert.Contains(t, out, "Tag: VARIABLE_DECLARATION")
	assert.Contains(t, out, `"name": "x"`)
	assert.Contains(t, out, `"type": "int"`)
}

func TestPrintSortsAttrsDeterministically(t *testing.T) {
	n := New(Parameter).WithAttr(KeyType, "float").WithAttr(KeyName, "y")

	var first, second strings.Builder
	n.Print(&first)
	n.Print(&second)

	assert.Equal(t, first.String(), second.String())
	// "name" sorts before "type" regardless of insertion order.
	assert.Less(t, strings.Index(first.String(), `"name"`), strings.Index(first.String(), `"type"`))
}
