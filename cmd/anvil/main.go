package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"anvil/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "anvil compiler framework driver",
	Long:  `anvil is an optimizing compiler framework built around a CPS-SSA graph IR`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(optCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().String("trace", "off", "pass tracing level (off|warn|info|debug)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
