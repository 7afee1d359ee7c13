package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
)

var disassembleOut string

var disassembleCmd = &cobra.Command{
	Use:   "disassemble <file.msb>",
	Short: "Disassemble a binary module into textual bytecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fail("opening %s: %v", args[0], err)
		}
		defer f.Close()

		module, err := bytecode.Decode(f)
		if err != nil {
			return fail("decoding %s: %v", args[0], err)
		}

		text := bytecode.Disassemble(module)
		if disassembleOut == "" {
			fmt.Println(text)
			return nil
		}
		if err := os.WriteFile(disassembleOut, []byte(text), 0o644); err != nil {
			return fail("writing %s: %v", disassembleOut, err)
		}
		successColor.Printf("wrote %s\n", disassembleOut)
		return nil
	},
}

func init() {
	disassembleCmd.Flags().StringVarP(&disassembleOut, "output", "o", "", "write to a file instead of stdout")
}
