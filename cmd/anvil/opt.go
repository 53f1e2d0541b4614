package main

import (
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"anvil/internal/analysis"
	"anvil/internal/demo"
	"anvil/internal/ir"
	"anvil/internal/ui"
)

var optCmd = &cobra.Command{
	Use:   "opt [name...]",
	Short: "Run the optimization pipeline over demo worlds",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = demo.Names()
		}
		pipelinePath, _ := cmd.Flags().GetString("pipeline")
		useUI, _ := cmd.Flags().GetBool("ui")
		quiet, _ := cmd.Flags().GetBool("quiet")
		traceLevel, _ := cmd.Flags().GetString("trace")
		setupColor(cmd)

		cfg, err := loadPipeline(pipelinePath)
		if err != nil {
			return err
		}

		worlds := make([]*ir.World, len(names))
		for i, name := range names {
			build, ok := demo.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown demo %q (have: %v)", name, demo.Names())
			}
			worlds[i] = build()
			if err := setupTracer(worlds[i], traceLevel, cfg); err != nil {
				return err
			}
		}

		if useUI && isTerminal(os.Stdout) {
			return optWithUI(worlds, names, cfg, quiet)
		}
		return optPlain(worlds, cfg, quiet)
	},
}

func init() {
	optCmd.Flags().String("pipeline", "", "TOML pipeline file (default: built-in pipeline)")
	optCmd.Flags().Bool("ui", false, "render progress with an interactive UI")
}

// optPlain runs each world's pipeline concurrently; every World stays
// confined to its own goroutine.
func optPlain(worlds []*ir.World, cfg PipelineConfig, quiet bool) error {
	var g errgroup.Group
	var mu sync.Mutex
	for _, w := range worlds {
		g.Go(func() error {
			if err := runPipeline(w, cfg, nil); err != nil {
				return err
			}
			if quiet {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			printScheduleSummary(w)
			return nil
		})
	}
	return g.Wait()
}

func optWithUI(worlds []*ir.World, names []string, cfg PipelineConfig, quiet bool) error {
	events := make(chan ui.Event, 256)
	var runErr error
	go func() {
		var g errgroup.Group
		for i, w := range worlds {
			name := names[i]
			g.Go(func() error {
				err := runPipeline(w, cfg, func(pass string) {
					events <- ui.Event{World: name, Pass: pass}
				})
				events <- ui.Event{World: name, Err: err, Done: true}
				return err
			})
		}
		runErr = g.Wait()
		close(events)
	}()

	model := ui.NewProgressModel("optimizing", names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	if _, err := program.Run(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !quiet {
		for _, w := range worlds {
			printScheduleSummary(w)
		}
	}
	return nil
}

// printScheduleSummary lists the smart schedule of every external scope.
func printScheduleSummary(w *ir.World) {
	header := color.New(color.FgCyan, color.Bold)
	header.Printf("== %s ==\n", w.Name())
	analysis.ForEach(w, func(s *analysis.Scope) {
		schedule := analysis.ScheduleSmart(s)
		for _, cont := range s.RPO() {
			fmt.Printf("  %s:\n", cont.UniqueName())
			for _, p := range schedule[cont] {
				fmt.Printf("    %s = %s %s\n", p.UniqueName(), p.Tag(), p.Type())
			}
		}
	})
	fmt.Println()
}
