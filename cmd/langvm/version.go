package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the langvm version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("langvm version %s\n", version)
		return nil
	},
}
