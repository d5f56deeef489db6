// Package trace implements the compiler's -v verbose output: one line per
// matched token, and one line on entry to and one on return from each
// traced grammar procedure. It is deliberately
// cheap when disabled — NoOp() returns a Sink whose methods do nothing, so
// hot paths in the lexer and parser pay no cost when -v isn't set.
package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Sink receives trace events. The lexer calls Token once per produced
// token; the parser calls Enter when a grammar procedure starts trying to
// match, and Reduce when that procedure returns — including when an
// alternative fails and the parser rewinds.
type Sink interface {
	Token(tok fmt.Stringer)
	Enter(rule string, depth int)
	Reduce(rule string, depth int)
}

type noop struct{}

func (noop) Token(fmt.Stringer) {}
func (noop) Enter(string, int)  {}
func (noop) Reduce(string, int) {}

// NoOp returns the disabled Sink used when -v is not given.
func NoOp() Sink { return noop{} }

// verbose is the enabled Sink, writing color-highlighted lines to w.
type verbose struct {
	w           io.Writer
	tokenColor  *color.Color
	enterColor  *color.Color
	reduceColor *color.Color
}

// New builds a verbose Sink writing to stdout. Color is auto-detected: a
// real terminal gets ANSI highlighting (via go-colorable on Windows, plain
// passthrough elsewhere), anything else gets plain text, matching the
// convention color-aware CLI tools in the retrieval pack follow.
func New() Sink {
	var w io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		w = colorable.NewColorableStdout()
	} else {
		color.NoColor = true
	}

	return &verbose{
		w:           w,
		tokenColor:  color.New(color.FgCyan),
		enterColor:  color.New(color.FgYellow),
		reduceColor: color.New(color.FgGreen),
	}
}

func (v *verbose) Token(tok fmt.Stringer) {
	v.tokenColor.Fprintf(v.w, "token: %s\n", tok.String())
}

func (v *verbose) Enter(rule string, depth int) {
	fmt.Fprint(v.w, indent(depth))
	v.enterColor.Fprintf(v.w, "-> %s\n", rule)
}

func (v *verbose) Reduce(rule string, depth int) {
	fmt.Fprint(v.w, indent(depth))
	v.reduceColor.Fprintf(v.w, "<- %s\n", rule)
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
