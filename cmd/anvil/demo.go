package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"anvil/internal/demo"
	"anvil/internal/ir"
)

var demoCmd = &cobra.Command{
	Use:   "demo [name...]",
	Short: "Print the IR of the built-in demo worlds",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = demo.Names()
		}
		setupColor(cmd)
		header := color.New(color.FgCyan, color.Bold)

		for _, name := range names {
			build, ok := demo.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown demo %q (have: %v)", name, demo.Names())
			}
			w := build()
			header.Fprintf(os.Stdout, "== %s ==\n", w.Name())
			if err := ir.Fprint(os.Stdout, w); err != nil {
				return err
			}
			fmt.Println()
		}
		return nil
	},
}

// setupColor applies the persistent --color flag.
func setupColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
