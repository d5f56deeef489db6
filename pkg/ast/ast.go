// Package ast defines the single uniform tree node the parser builds and
// the emitter walks. A tagged record (tag + small string-keyed attribute
// map + ordered children) is all the grammar needs: no node type carries
// fields of its own, and child-list order is what the emitter relies on to
// find e.g. an `if` condition versus its then-branch.
package ast

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Tag identifies what a Node represents. The set is closed.
type Tag string

const (
	Program Tag = "PROGRAM"

	VariableDeclaration Tag = "VARIABLE_DECLARATION"
	FunctionDeclaration Tag = "FUNCTION_DECLARATION"
	FunctionDefinition  Tag = "FUNCTION_DEFINITION"
	Parameter           Tag = "PARAMETER"
	VoidParameters      Tag = "VOID_PARAMETERS"

	StatementIf           Tag = "STATEMENT_IF"
	StatementWhile        Tag = "STATEMENT_WHILE"
	StatementReturn       Tag = "STATEMENT_RETURN"
	StatementRead         Tag = "STATEMENT_READ"
	StatementWrite        Tag = "STATEMENT_WRITE"
	StatementFunctionCall Tag = "STATEMENT_FUNCTION_CALL"
	StatementAssignment   Tag = "STATEMENT_ASSIGNMENT"
	StatementList         Tag = "STATEMENT_LIST"
	StatementEmpty        Tag = "STATEMENT_EMPTY"

	ExpressionUnaryOperation  Tag = "EXPRESSION_UNARY_OPERATION"
	ExpressionBinaryOperation Tag = "EXPRESSION_BINARY_OPERATION"
	ExpressionVariable        Tag = "EXPRESSION_VARIABLE"
	ExpressionFunctionCall    Tag = "EXPRESSION_FUNCTION_CALL"
	ExpressionLiteral         Tag = "EXPRESSION_LITERAL"

	StringLiteral Tag = "STRING_LITERAL"
	Null          Tag = "NULL"
)

// Attribute keys used across node kinds. Not every node uses every key;
// which keys are populated depends on Tag (set by pkg/parser).
const (
	KeyName          = "name"
	KeyType          = "type"
	KeyReturnType    = "return type"
	KeyValue         = "value"
	KeyScope         = "scope"
	KeyNumber        = "number"
	KeyParenthesised = "parenthesised"
)

// Node is the single node type for the whole AST. It owns its children —
// there is no sharing and no back-pointer to a parent.
type Node struct {
	Tag      Tag
	Attrs    map[string]string
	Children []Node
}

// New builds a childless node with no attributes yet.
func New(tag Tag) Node {
	return Node{Tag: tag, Attrs: map[string]string{}}
}

// WithAttr sets an attribute and returns the node, for fluent construction
// in the parser.
func (n Node) WithAttr(key, value string) Node {
	if n.Attrs == nil {
		n.Attrs = map[string]string{}
	}
	n.Attrs[key] = value
	return n
}

// Attr returns an attribute's value, or "" if unset.
func (n Node) Attr(key string) string { return n.Attrs[key] }

// AddChild appends a child, preserving the semantically significant order.
func (n *Node) AddChild(child Node) {
	n.Children = append(n.Children, child)
}

// Print writes an indented, recursive dump of the tree rooted at n: tag,
// attribute map, then children — the debug pretty-printer spec.md's §4.2
// calls for.
func (n Node) Print(w io.Writer) {
	n.print(w, 0)
}

func (n Node) print(w io.Writer, indent int) {
	prefix := strings.Repeat("| ", indent)

	fmt.Fprintf(w, "%s*---\n", prefix)
	fmt.Fprintf(w, "%s| Tag: %s\n", prefix, n.Tag)

	if len(n.Attrs) > 0 {
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%q: %q", k, n.Attrs[k]))
		}
		fmt.Fprintf(w, "%s| Attrs: [%s]\n", prefix, strings.Join(parts, ", "))
	}

	if len(n.Children) > 0 {
		fmt.Fprintf(w, "%s| Children:\n", prefix)
		for _, child := range n.Children {
			child.print(w, indent+1)
		}
	}

	fmt.Fprintf(w, "%s*---\n", prefix)
}
