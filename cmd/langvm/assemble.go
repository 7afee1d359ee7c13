package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
)

var assembleStrict bool

var assembleCmd = &cobra.Command{
	Use:   "assemble <file.msa> [out.msb]",
	Short: "Assemble textual bytecode into a binary module",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fail("reading %s: %v", args[0], err)
		}

		module, err := bytecode.Assemble(string(src), bytecode.AssembleOptions{StrictMode: assembleStrict})
		if err != nil {
			return fail("assembling %s: %v", args[0], err)
		}

		out := args[0][:len(args[0])-len(filepath.Ext(args[0]))] + ".msb"
		if len(args) == 2 {
			out = args[1]
		}

		f, err := os.Create(out)
		if err != nil {
			return fail("creating %s: %v", out, err)
		}
		defer f.Close()

		if err := bytecode.Encode(module, f); err != nil {
			return fail("encoding %s: %v", out, err)
		}

		successColor.Printf("wrote %s\n", out)
		return nil
	},
}

func init() {
	assembleCmd.Flags().BoolVar(&assembleStrict, "strict", false, "require exact-case mnemonics")
}
