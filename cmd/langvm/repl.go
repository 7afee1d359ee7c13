package main

import (
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/miniscript-lang/miniscript/pkg/vm"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive read-eval-print loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

// runRepl re-compiles the accumulated session source on every line, the
// simplest way to get persistent bindings out of a compiler with no
// incremental mode: each accepted line is appended to the growing script
// and the whole thing is recompiled and re-run from scratch.
func runRepl() error {
	infoColor.Println("miniscript " + version + " -- interactive session")
	infoColor.Println("Type '.exit' to quit.")

	rl, err := readline.New("ms> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var session strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil {
			successColor.Println("bye")
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			successColor.Println("bye")
			return nil
		}
		rl.SaveHistory(line)

		candidate := session.String() + line + "\n"
		module, err := compileSource(candidate, true, 50)
		if err != nil {
			// Keep the session unchanged so the user can correct the line.
			continue
		}

		machine := vm.New()
		machine.SetLimits(vm.Limits{
			MaxOperandDepth: cfg.Execution.MaxOperandDepth,
			MaxCallDepth:    cfg.Execution.MaxCallDepth,
			MaxSteps:        cfg.Execution.MaxSteps,
			MaxHeapBlocks:   cfg.Memory.MaxHeapBlocks,
		})
		machine.SetHeap(cfg.Memory.InitialHeapSize, cfg.Memory.GCThresholdAllocs)
		machine.Load(module)
		if err := machine.Run(); err != nil {
			errorColor.Println(err.Error())
			continue
		}

		session.WriteString(line)
		session.WriteString("\n")

		if stack := machine.Stack(); len(stack) > 0 {
			successColor.Println(stack[len(stack)-1].ToString())
		}
	}
}
