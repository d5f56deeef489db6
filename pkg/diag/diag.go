// Package diag centralizes the compiler's fatal-error reporting. Every
// stage (lexer, parser, emitter) halts the process on its first error, per
// the compiler's halt-on-first-error design — there is no recovery and no
// warning level.
package diag

import (
	"fmt"
	"os"
)

// Stage names one of the three error domains, each with its own single
// taxonomic slot of failure messages.
type Stage string

const (
	Lexer   Stage = "lexer"
	Parser  Stage = "parser"
	Emitter Stage = "emitter"
)

// Fatalf writes the two-line diagnostic to stderr and terminates the
// process with a nonzero exit status. No partial output is guaranteed.
func Fatalf(stage Stage, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Compilation aborted: %s error\n", stage)
	fmt.Fprintf(os.Stderr, "-> %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
