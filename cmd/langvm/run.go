package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
	"github.com/miniscript-lang/miniscript/pkg/vm"
)

var (
	runTrace      bool
	runNoOptimize bool
	runMaxSteps   int
	runDumpBytes  bool
	runHeapStats  bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and execute a miniscript source file or precompiled module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fail("reading %s: %v", path, err)
		}

		var module *bytecode.Module
		if strings.EqualFold(filepath.Ext(path), ".msb") {
			module, err = bytecode.Decode(strings.NewReader(string(data)))
		} else {
			module, err = compileSource(string(data), !runNoOptimize, 50)
		}
		if err != nil {
			return err
		}

		if runDumpBytes {
			infoColor.Println(bytecode.Disassemble(module))
		}

		machine := vm.New()
		machine.SetLimits(vm.Limits{
			MaxOperandDepth: cfg.Execution.MaxOperandDepth,
			MaxCallDepth:    cfg.Execution.MaxCallDepth,
			MaxSteps:        effectiveMaxSteps(),
			MaxHeapBlocks:   cfg.Memory.MaxHeapBlocks,
		})
		machine.SetHeap(cfg.Memory.InitialHeapSize, cfg.Memory.GCThresholdAllocs)
		machine.Load(module)

		if runTrace {
			machine.PrintFunc = func(s string) {
				successColor.Println(s)
			}
		}

		if err := machine.Run(); err != nil {
			return fail("runtime error: %v", err)
		}
		if stack := machine.Stack(); len(stack) > 0 {
			infoColor.Printf("result: %s\n", stack[len(stack)-1].ToString())
		}
		if runHeapStats {
			s := machine.HeapStats()
			infoColor.Printf("heap: %d allocated, %d free blocks, %d GC runs (%s)\n", s.Allocated, s.FreeBlocks, s.GCRuns, s.GCTime)
		}
		return nil
	},
}

func effectiveMaxSteps() int {
	if runMaxSteps > 0 {
		return runMaxSteps
	}
	return cfg.Execution.MaxSteps
}

func init() {
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "highlight PRINT output")
	runCmd.Flags().BoolVar(&runNoOptimize, "no-optimize", false, "skip the constant-folding/DCE optimizer")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "override the configured step budget (0 = use config)")
	runCmd.Flags().BoolVar(&runDumpBytes, "dump-bytecode", false, "print disassembled bytecode before executing")
	runCmd.Flags().BoolVar(&runHeapStats, "heap-stats", false, "print auxiliary heap statistics after execution")
}
