package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"anvil/internal/demo"
	"anvil/internal/ir"
	"anvil/internal/snapshot"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <name>",
	Short: "Write a binary snapshot of a demo world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		build, ok := demo.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown demo %q (have: %v)", name, demo.Names())
		}
		w := build()

		text, _ := cmd.Flags().GetBool("text")
		if text {
			return ir.Fprint(os.Stdout, w)
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = name + ".anvil"
		}
		data, err := snapshot.Encode(w)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringP("output", "o", "", "output file (default: <name>.anvil)")
	dumpCmd.Flags().Bool("text", false, "print a textual listing instead")
}
