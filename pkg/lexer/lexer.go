// Package lexer turns C-- source text into a stream of tokens, one at a
// time, on demand.
package lexer

import (
	"strings"

	"cmm.dev/compiler/pkg/diag"
	"cmm.dev/compiler/pkg/token"
	"cmm.dev/compiler/pkg/trace"
)

const eof = rune(0)

// Lexer holds the cursor state over an immutable source string. Each
// Token's Text is a fresh string copied out of the source runes, so tokens
// stay valid independently of the Lexer and its source.
type Lexer struct {
	source   []rune
	position int // index of CurrentChar in source
	trace    trace.Sink
}

// New positions the cursor on the source's first character (or EOF if the
// source is empty) and returns a ready-to-use Lexer.
func New(source string) *Lexer {
	l := &Lexer{source: []rune(source), position: 0, trace: trace.NoOp()}
	return l
}

// WithTrace attaches a verbose-mode sink that receives one call per token
// produced by NextToken.
func (l *Lexer) WithTrace(t trace.Sink) *Lexer {
	l.trace = t
	return l
}

// CurrentChar returns the character under the cursor, or the eof sentinel
// once the source is exhausted.
func (l *Lexer) CurrentChar() rune {
	if l.position >= len(l.source) {
		return eof
	}
	return l.source[l.position]
}

// PeekChar looks one character ahead of the cursor without moving it.
func (l *Lexer) PeekChar() rune {
	if l.position+1 >= len(l.source) {
		return eof
	}
	return l.source[l.position+1]
}

// AdvanceChar moves the cursor forward by one character.
func (l *Lexer) AdvanceChar() {
	l.position++
}

var singleCharTokens = map[rune]token.Kind{
	',': token.COMMA,
	'/': token.DIVIDE,
	'{': token.LBRACE,
	'[': token.LBRACKET,
	'(': token.LPAREN,
	'-': token.MINUS,
	'*': token.MULTIPLY,
	'+': token.PLUS,
	'}': token.RBRACE,
	']': token.RBRACKET,
	')': token.RPAREN,
	';': token.SEMI,
}

// NextToken skips whitespace and block comments, then produces exactly one
// token, advancing the cursor past it. It never loops forever: every
// branch either halts the process via diag.Fatalf or returns a token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	var tok token.Token
	switch ch := l.CurrentChar(); {
	case ch == eof:
		tok = token.New(token.EOF, "")

	case singleCharTokens[ch] != "":
		tok = token.New(singleCharTokens[ch], string(ch))
		l.AdvanceChar()

	case ch == '&':
		if l.PeekChar() != '&' {
			diag.Fatalf(diag.Lexer, "expected '&&', got single '&'")
		}
		l.AdvanceChar()
		l.AdvanceChar()
		tok = token.New(token.AND, "&&")

	case ch == '|':
		if l.PeekChar() != '|' {
			diag.Fatalf(diag.Lexer, "expected '||', got single '|'")
		}
		l.AdvanceChar()
		l.AdvanceChar()
		tok = token.New(token.OR, "||")

	case ch == '=':
		tok = l.oneOrTwo('=', token.ASSIGN, token.EQ, "=", "==")
	case ch == '>':
		tok = l.oneOrTwo('=', token.GT, token.GE, ">", ">=")
	case ch == '<':
		tok = l.oneOrTwo('=', token.LT, token.LE, "<", "<=")
	case ch == '!':
		tok = l.oneOrTwo('=', token.NOT, token.NEQ, "!", "!=")

	case ch == '"':
		tok = l.readString()

	case isDigit(ch):
		tok = l.readNumber()

	case isIdentStart(ch):
		tok = l.readIdentifier()

	default:
		diag.Fatalf(diag.Lexer, "Invalid token %q", ch)
		return token.Token{} // unreachable, diag.Fatalf halts the process
	}

	l.trace.Token(tok)
	return tok
}

// oneOrTwo consumes `ch`, then checks whether the next character is
// `second`; if so it consumes it too and returns the two-character token,
// otherwise it returns the one-character token.
func (l *Lexer) oneOrTwo(second rune, oneKind, twoKind token.Kind, oneText, twoText string) token.Token {
	l.AdvanceChar()
	if l.CurrentChar() == second {
		l.AdvanceChar()
		return token.New(twoKind, twoText)
	}
	return token.New(oneKind, oneText)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case isWhitespace(l.CurrentChar()):
			l.AdvanceChar()
		case l.CurrentChar() == '/' && l.PeekChar() == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	l.AdvanceChar() // '/'
	l.AdvanceChar() // '*'
	for {
		if l.CurrentChar() == eof {
			diag.Fatalf(diag.Lexer, "unterminated block comment")
		}
		if l.CurrentChar() == '*' && l.PeekChar() == '/' {
			l.AdvanceChar()
			l.AdvanceChar()
			return
		}
		l.AdvanceChar()
	}
}

func (l *Lexer) readString() token.Token {
	l.AdvanceChar() // opening quote
	var sb strings.Builder
	for {
		switch l.CurrentChar() {
		case eof:
			diag.Fatalf(diag.Lexer, "unterminated string literal")
		case '\n':
			diag.Fatalf(diag.Lexer, "newline in string literal")
		case '"':
			l.AdvanceChar()
			return token.New(token.STRING_LIT, sb.String())
		default:
			sb.WriteRune(l.CurrentChar())
			l.AdvanceChar()
		}
	}
}

func (l *Lexer) readNumber() token.Token {
	var sb strings.Builder
	for isDigit(l.CurrentChar()) {
		sb.WriteRune(l.CurrentChar())
		l.AdvanceChar()
	}

	if l.CurrentChar() == '.' && isDigit(l.PeekChar()) {
		sb.WriteRune(l.CurrentChar())
		l.AdvanceChar()
		for isDigit(l.CurrentChar()) {
			sb.WriteRune(l.CurrentChar())
			l.AdvanceChar()
		}
		return token.New(token.FLOAT_LIT, sb.String())
	}

	return token.New(token.INT_LIT, sb.String())
}

func (l *Lexer) readIdentifier() token.Token {
	var sb strings.Builder
	for isIdentPart(l.CurrentChar()) {
		sb.WriteRune(l.CurrentChar())
		l.AdvanceChar()
	}

	text := sb.String()
	if kind, ok := token.Keywords[text]; ok {
		return token.New(kind, text)
	}
	return token.New(token.IDENT, text)
}

func isWhitespace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }
func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
func isIdentPart(ch rune) bool { return isIdentStart(ch) || isDigit(ch) }
