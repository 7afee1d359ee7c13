package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miniscript-lang/miniscript/internal/config"
)

const version = "0.1.0"

var (
	cfgPath string
	cfg     *config.Config

	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "langvm",
	Short: "A compiler and virtual machine for the miniscript language",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if !cfg.CLI.ColorOutput {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a TOML config file")
	rootCmd.AddCommand(runCmd, assembleCmd, disassembleCmd, replCmd, versionCmd)
}

func fail(format string, args ...interface{}) error {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
	return fmt.Errorf(format, args...)
}
