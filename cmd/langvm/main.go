// Command langvm is the miniscript command-line front end: run, assemble,
// disassemble, and repl subcommands over the lexer/parser/optimizer/
// compiler/vm pipeline, built on Cobra in place of the teacher's raw
// os.Args switch (cmd/smog/main.go) since that dispatch needs a real flag
// set (--trace, --max-steps, --no-optimize, --dump-bytecode) the teacher's
// positional-argument parsing can't express cleanly.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
