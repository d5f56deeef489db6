// Package parser implements a hand-written recursive-descent parser with
// unbounded backtracking over a buffered token stream, producing an
// ast.Node tree rooted at "program".
package parser

import (
	"cmm.dev/compiler/pkg/ast"
	"cmm.dev/compiler/pkg/diag"
	"cmm.dev/compiler/pkg/lexer"
	"cmm.dev/compiler/pkg/token"
	"cmm.dev/compiler/pkg/trace"
	"cmm.dev/compiler/pkg/utils"
)

// tokenSource is the subset of *lexer.Lexer the parser needs; satisfied by
// the real lexer and by tests that want to hand-feed a token sequence.
type tokenSource interface {
	NextToken() token.Token
}

// Parser buffers tokens in an extensible slice addressed by an integer
// cursor, so grammar procedures can rewind to an earlier position when an
// alternative fails before committing.
type Parser struct {
	lex    tokenSource
	tokens []token.Token
	cursor int // index into tokens of the "current" token

	trace trace.Sink
	rules utils.Stack[string] // in-flight grammar rule names, for trace nesting
}

// New creates a Parser reading from lex. The first token is fetched
// immediately so `current()` is always valid.
func New(lex tokenSource) *Parser {
	p := &Parser{lex: lex, trace: trace.NoOp()}
	p.tokens = append(p.tokens, lex.NextToken())
	return p
}

// WithTrace attaches a verbose-mode sink.
func (p *Parser) WithTrace(t trace.Sink) *Parser {
	p.trace = t
	return p
}

// current returns the token at the cursor.
func (p *Parser) current() token.Token { return p.tokens[p.cursor] }

// advance moves the cursor forward by one token, fetching a new token from
// the lexer only when the cursor reaches the end of the buffer.
func (p *Parser) advance() {
	p.cursor++
	if p.cursor >= len(p.tokens) {
		p.tokens = append(p.tokens, p.lex.NextToken())
	}
}

// mark returns a checkpoint the caller can rewind to.
func (p *Parser) mark() int { return p.cursor }

// rewind moves the cursor back to an earlier checkpoint. It never moves
// forward: pos must have been returned by an earlier mark().
func (p *Parser) rewind(pos int) { p.cursor = pos }

// accept returns true and advances iff the current token matches kind;
// otherwise it leaves the cursor in place and returns false.
func (p *Parser) accept(kind token.Kind) (token.Token, bool) {
	if p.current().Kind == kind {
		tok := p.current()
		p.advance()
		return tok, true
	}
	return token.Token{}, false
}

// expect accepts kind or halts fatally with a position-independent message
// naming what was expected and the context it was expected in. Used once a
// production has committed to an alternative (backtracking is no longer an
// option).
func (p *Parser) expect(kind token.Kind, context string) token.Token {
	tok, ok := p.accept(kind)
	if !ok {
		diag.Fatalf(diag.Parser, "Expected %s after %s, got %s", kind, context, p.current().Kind)
	}
	return tok
}

// enter/reduce bracket a grammar procedure for verbose tracing.
func (p *Parser) enter(rule string) {
	p.rules.Push(rule)
	p.trace.Enter(rule, p.rules.Count()-1)
}

func (p *Parser) reduce(rule string) {
	p.trace.Reduce(rule, p.rules.Count()-1)
	p.rules.Pop()
}

// Parse runs the full grammar over the buffered token stream and returns
// the AST rooted at a PROGRAM node. It halts the process on the first
// grammar error it cannot backtrack out of.
func (p *Parser) Parse() ast.Node {
	return p.parseProgram()
}

// program ::= { function | declaration ';' } EOF
func (p *Parser) parseProgram() ast.Node {
	p.enter("program")
	defer p.reduce("program")

	root := ast.New(ast.Program)

	for p.current().Kind != token.EOF {
		if fn, ok := p.tryFunction(); ok {
			root.AddChild(fn)
			continue
		}

		if decls, ok := p.tryDeclaration(); ok {
			p.expect(token.SEMI, "declaration")
			for _, d := range decls {
				root.AddChild(d)
			}
			continue
		}

		diag.Fatalf(diag.Parser, "Expected a function or declaration, got %s", p.current().Kind)
	}

	return root
}

// type ::= 'int' | 'float'
func (p *Parser) tryType() (string, bool) {
	tok := p.current()
	if !tok.IsType() {
		return "", false
	}
	p.advance()
	return tok.Text, true
}

// declaration ::= function_decl | var_decl_list
//
// function_decl ::= (type | 'void') IDENT '(' param_types ')'
//                    { ',' IDENT '(' param_types ')' }
// var_decl_list ::= type IDENT { ',' IDENT }
//
// Both alternatives start with a type keyword (function_decl also allows
// 'void'), so we commit to "it's a declaration of some kind" once we've
// seen a type/void followed by an identifier, then disambiguate on
// whether '(' follows.
func (p *Parser) tryDeclaration() ([]ast.Node, bool) {
	p.enter("declaration")
	defer p.reduce("declaration")

	start := p.mark()

	returnType, isVoid := "", false
	if t, ok := p.tryType(); ok {
		returnType = t
	} else if _, ok := p.accept(token.VOID); ok {
		isVoid = true
	} else {
		p.rewind(start)
		return nil, false
	}

	nameTok, ok := p.accept(token.IDENT)
	if !ok {
		p.rewind(start)
		return nil, false
	}

	if _, ok := p.accept(token.LPAREN); ok {
		// function_decl — committed from here on.
		decls := []ast.Node{p.finishFunctionDecl(returnType, isVoid, nameTok.Text)}
		for {
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
			name := p.expect(token.IDENT, "',' in function declaration list")
			p.expect(token.LPAREN, "function name")
			decls = append(decls, p.finishFunctionDecl(returnType, isVoid, name.Text))
		}
		return decls, true
	}

	if isVoid {
		diag.Fatalf(diag.Parser, "Expected '(' after 'void' in declaration")
	}

	// var_decl_list — committed.
	decls := []ast.Node{varDeclNode(returnType, nameTok.Text)}
	for {
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
		name := p.expect(token.IDENT, "',' in variable declaration list")
		decls = append(decls, varDeclNode(returnType, name.Text))
	}
	return decls, true
}

func varDeclNode(typ, name string) ast.Node {
	return ast.New(ast.VariableDeclaration).WithAttr(ast.KeyType, typ).WithAttr(ast.KeyName, name)
}

// finishFunctionDecl parses `param_types ')'` having already consumed
// `(type|void) IDENT '('`.
func (p *Parser) finishFunctionDecl(returnType string, isVoid bool, name string) ast.Node {
	node := ast.New(ast.FunctionDeclaration).WithAttr(ast.KeyName, name)
	if isVoid {
		node = node.WithAttr(ast.KeyReturnType, "void")
	} else {
		node = node.WithAttr(ast.KeyReturnType, returnType)
	}

	for _, param := range p.parseParamTypes() {
		node.AddChild(param)
	}
	p.expect(token.RPAREN, "parameter list")
	return node
}

// param_types ::= 'void' | type IDENT { ',' type IDENT }
func (p *Parser) parseParamTypes() []ast.Node {
	p.enter("param_types")
	defer p.reduce("param_types")

	if _, ok := p.accept(token.VOID); ok {
		return []ast.Node{ast.New(ast.VoidParameters)}
	}

	params := []ast.Node{}
	typ, ok := p.tryType()
	if !ok {
		return params // `()` with no parameters at all is tolerated the same as void
	}
	name := p.expect(token.IDENT, "parameter type")
	params = append(params, ast.New(ast.Parameter).WithAttr(ast.KeyType, typ).WithAttr(ast.KeyName, name.Text))

	for {
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
		typ := p.expectType("parameter list")
		name := p.expect(token.IDENT, "parameter type")
		params = append(params, ast.New(ast.Parameter).WithAttr(ast.KeyType, typ).WithAttr(ast.KeyName, name.Text))
	}
	return params
}

func (p *Parser) expectType(context string) string {
	if t, ok := p.tryType(); ok {
		return t
	}
	diag.Fatalf(diag.Parser, "Expected a type after %s", context)
	return ""
}

// function ::= (type | 'void') IDENT '(' param_types ')'
//              '{' { type IDENT { ',' IDENT } ';' } { statement } '}'
func (p *Parser) tryFunction() (ast.Node, bool) {
	p.enter("function")
	defer p.reduce("function")

	start := p.mark()

	returnType, isVoid := "", false
	if t, ok := p.tryType(); ok {
		returnType = t
	} else if _, ok := p.accept(token.VOID); ok {
		isVoid = true
	} else {
		p.rewind(start)
		return ast.Node{}, false
	}

	nameTok, ok := p.accept(token.IDENT)
	if !ok {
		p.rewind(start)
		return ast.Node{}, false
	}

	if _, ok := p.accept(token.LPAREN); !ok {
		p.rewind(start)
		return ast.Node{}, false
	}

	params := p.parseParamTypes()
	p.expect(token.RPAREN, "parameter list")

	if _, ok := p.accept(token.LBRACE); !ok {
		p.rewind(start)
		return ast.Node{}, false
	}

	// Committed: this is a function definition, not merely a declaration.
	node := ast.New(ast.FunctionDefinition).WithAttr(ast.KeyName, nameTok.Text)
	if isVoid {
		node = node.WithAttr(ast.KeyReturnType, "void")
	} else {
		node = node.WithAttr(ast.KeyReturnType, returnType)
	}
	for _, param := range params {
		node.AddChild(param)
	}

	for {
		typ, ok := p.tryType()
		if !ok {
			break
		}
		name := p.expect(token.IDENT, "local variable type")
		node.AddChild(varDeclNode(typ, name.Text))
		for {
			if _, ok := p.accept(token.COMMA); !ok {
				break
			}
			name := p.expect(token.IDENT, "',' in local variable declaration")
			node.AddChild(varDeclNode(typ, name.Text))
		}
		p.expect(token.SEMI, "local variable declaration")
	}

	for p.current().Kind != token.RBRACE {
		node.AddChild(p.parseStatement())
	}
	p.expect(token.RBRACE, "function body")

	return node, true
}

// statement ::= 'if' '(' expr ')' statement [ 'else' statement ]
//            | 'while' '(' expr ')' statement
//            | 'return' [ expr ] ';'
//            | 'read' '(' IDENT ')' ';'
//            | 'write' '(' ( STRING_LIT | expr ) ')' ';'
//            | IDENT '(' [ expr { ',' expr } ] ')' ';'
//            | IDENT '=' expr ';'
//            | '{' { statement } '}'
//            | ';'
func (p *Parser) parseStatement() ast.Node {
	p.enter("statement")
	defer p.reduce("statement")

	switch p.current().Kind {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.RETURN:
		return p.parseReturn()
	case token.READ:
		return p.parseRead()
	case token.WRITE:
		return p.parseWrite()
	case token.LBRACE:
		return p.parseBlock()
	case token.SEMI:
		p.advance()
		return ast.New(ast.StatementEmpty)
	case token.IDENT:
		return p.parseIdentStatement()
	default:
		diag.Fatalf(diag.Parser, "Expected a statement, got %s", p.current().Kind)
		return ast.Node{}
	}
}

func (p *Parser) parseIf() ast.Node {
	p.expect(token.IF, "statement")
	p.expect(token.LPAREN, "'if'")
	cond := p.parseExpression()
	p.expect(token.RPAREN, "'if' condition")
	then := p.parseStatement()

	node := ast.New(ast.StatementIf)
	node.AddChild(cond)
	node.AddChild(then)

	if _, ok := p.accept(token.ELSE); ok {
		node.AddChild(p.parseStatement())
	}
	return node
}

func (p *Parser) parseWhile() ast.Node {
	p.expect(token.WHILE, "statement")
	p.expect(token.LPAREN, "'while'")
	cond := p.parseExpression()
	p.expect(token.RPAREN, "'while' condition")
	body := p.parseStatement()

	node := ast.New(ast.StatementWhile)
	node.AddChild(cond)
	node.AddChild(body)
	return node
}

func (p *Parser) parseReturn() ast.Node {
	p.expect(token.RETURN, "statement")
	node := ast.New(ast.StatementReturn)
	if p.current().Kind != token.SEMI {
		node.AddChild(p.parseExpression())
	}
	p.expect(token.SEMI, "'return' statement")
	return node
}

func (p *Parser) parseRead() ast.Node {
	p.expect(token.READ, "statement")
	p.expect(token.LPAREN, "'read'")
	name := p.expect(token.IDENT, "'read('")
	p.expect(token.RPAREN, "'read' target")
	p.expect(token.SEMI, "'read' statement")
	return ast.New(ast.StatementRead).WithAttr(ast.KeyName, name.Text)
}

func (p *Parser) parseWrite() ast.Node {
	p.expect(token.WRITE, "statement")
	p.expect(token.LPAREN, "'write'")

	node := ast.New(ast.StatementWrite)
	if strTok, ok := p.accept(token.STRING_LIT); ok {
		lit := ast.New(ast.StringLiteral).WithAttr(ast.KeyValue, strTok.Text)
		node.AddChild(lit)
	} else {
		node.AddChild(p.parseExpression())
	}

	p.expect(token.RPAREN, "'write' argument")
	p.expect(token.SEMI, "'write' statement")
	return node
}

func (p *Parser) parseBlock() ast.Node {
	p.expect(token.LBRACE, "statement")
	node := ast.New(ast.StatementList)
	for p.current().Kind != token.RBRACE {
		node.AddChild(p.parseStatement())
	}
	p.expect(token.RBRACE, "block")
	return node
}

// parseIdentStatement handles the two IDENT-led statement forms: a
// function-call statement and an assignment. One token of lookahead past
// the identifier (the next token is '(' or '=') disambiguates them.
func (p *Parser) parseIdentStatement() ast.Node {
	name := p.expect(token.IDENT, "statement")

	if _, ok := p.accept(token.LPAREN); ok {
		node := ast.New(ast.StatementFunctionCall).WithAttr(ast.KeyName, name.Text)
		for _, arg := range p.parseArguments() {
			node.AddChild(arg)
		}
		p.expect(token.RPAREN, "call arguments")
		p.expect(token.SEMI, "function call statement")
		return node
	}

	p.expect(token.ASSIGN, "identifier in statement position")
	value := p.parseExpression()
	p.expect(token.SEMI, "assignment")

	node := ast.New(ast.StatementAssignment).WithAttr(ast.KeyName, name.Text)
	node.AddChild(value)
	return node
}

// parseArguments ::= [ expr { ',' expr } ]  (the closing ')' is consumed by the caller)
func (p *Parser) parseArguments() []ast.Node {
	if p.current().Kind == token.RPAREN {
		return nil
	}

	args := []ast.Node{p.parseExpression()}
	for {
		if _, ok := p.accept(token.COMMA); !ok {
			break
		}
		args = append(args, p.parseExpression())
	}
	return args
}

var binaryOperators = map[token.Kind]string{
	token.PLUS:     "+",
	token.MINUS:    "-",
	token.MULTIPLY: "*",
	token.DIVIDE:   "/",
	token.EQ:       "==",
	token.NEQ:      "!=",
	token.LT:       "<",
	token.LE:       "<=",
	token.GT:       ">",
	token.GE:       ">=",
	token.AND:      "&&",
	token.OR:       "||",
}

// expr ::= '(' expr ')' [ binop expr ]
//        | '-' expr
//        | '!' expr
//        | LITERAL [ binop expr ]
//        | IDENT ( '(' [ expr { ',' expr } ] ')' | ε ) [ binop expr ]
//
// Right-recursive by design (see spec's design notes): operator precedence
// is not modelled, expressions associate right-to-left in token order.
// Parenthesisation is preserved via the "parenthesised" attribute so a
// downstream consumer could rebalance if it wanted to.
func (p *Parser) parseExpression() ast.Node {
	p.enter("expr")
	defer p.reduce("expr")

	primary := p.parsePrimaryExpression()

	if op, ok := binaryOperators[p.current().Kind]; ok {
		p.advance()
		rhs := p.parseExpression()
		node := ast.New(ast.ExpressionBinaryOperation).WithAttr(ast.KeyValue, op)
		node.AddChild(primary)
		node.AddChild(rhs)
		return node
	}

	return primary
}

func (p *Parser) parsePrimaryExpression() ast.Node {
	switch p.current().Kind {
	case token.LPAREN:
		p.advance()
		inner := p.parseExpression()
		p.expect(token.RPAREN, "parenthesised expression")
		return inner.WithAttr(ast.KeyParenthesised, "true")

	case token.MINUS:
		p.advance()
		operand := p.parseExpression()
		node := ast.New(ast.ExpressionUnaryOperation).WithAttr(ast.KeyValue, "-")
		node.AddChild(operand)
		return node

	case token.NOT:
		p.advance()
		operand := p.parseExpression()
		node := ast.New(ast.ExpressionUnaryOperation).WithAttr(ast.KeyValue, "!")
		node.AddChild(operand)
		return node

	case token.INT_LIT:
		tok, _ := p.accept(token.INT_LIT)
		return ast.New(ast.ExpressionLiteral).WithAttr(ast.KeyType, "int").WithAttr(ast.KeyValue, tok.Text)

	case token.FLOAT_LIT:
		tok, _ := p.accept(token.FLOAT_LIT)
		return ast.New(ast.ExpressionLiteral).WithAttr(ast.KeyType, "float").WithAttr(ast.KeyValue, tok.Text)

	case token.IDENT:
		name := p.expect(token.IDENT, "expression")
		if _, ok := p.accept(token.LPAREN); ok {
			node := ast.New(ast.ExpressionFunctionCall).WithAttr(ast.KeyName, name.Text)
			for _, arg := range p.parseArguments() {
				node.AddChild(arg)
			}
			p.expect(token.RPAREN, "call arguments")
			return node
		}
		return ast.New(ast.ExpressionVariable).WithAttr(ast.KeyName, name.Text)

	default:
		diag.Fatalf(diag.Parser, "Expected an expression, got %s", p.current().Kind)
		return ast.Node{}
	}
}
