package main

import (
	"fmt"
	"os"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
	"github.com/miniscript-lang/miniscript/pkg/compiler"
	"github.com/miniscript-lang/miniscript/pkg/optimizer"
	"github.com/miniscript-lang/miniscript/pkg/parser"
)

// compileSource runs the full lexer/parser/optimizer/compiler pipeline
// over source text, printing diagnostics to stderr in the usual colored
// style and returning the compiled module.
func compileSource(source string, optimize bool, maxPasses int) (*bytecode.Module, error) {
	p := parser.New(source)
	prog, err := p.Parse()
	if err != nil {
		for _, e := range p.Errors() {
			errorColor.Fprintln(os.Stderr, e.Error())
		}
		return nil, fmt.Errorf("parsing failed")
	}

	if optimize {
		optimized, result := optimizer.Optimize(prog, maxPasses)
		prog = optimized
		if len(result.OptimizationsApplied) > 0 {
			infoColor.Printf("optimizer: %d pass(es), %d -> %d nodes (%.1f%% reduction)\n",
				result.PassCount, result.Metrics.OriginalCount, result.Metrics.OptimizedCount, result.Metrics.ReductionPercent)
		}
	}

	c := compiler.New()
	module, err := c.Compile(prog)
	if err != nil {
		for _, e := range c.Errors() {
			errorColor.Fprintln(os.Stderr, e.Error())
		}
		return nil, fmt.Errorf("compilation failed")
	}
	return module, nil
}
