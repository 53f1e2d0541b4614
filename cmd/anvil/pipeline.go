package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"anvil/internal/ir"
	"anvil/internal/trace"
	"anvil/internal/transform"
)

// PipelineConfig selects the passes to run over each world.
type PipelineConfig struct {
	Passes []string `toml:"passes"`
	Trace  string   `toml:"trace"`
}

func defaultPipeline() PipelineConfig {
	return PipelineConfig{
		Passes: []string{
			"partial_evaluation",
			"inliner",
			"lift_enters",
			"rewrite_flow_graphs",
			"cleanup",
			"verify",
		},
	}
}

// loadPipeline reads a TOML pipeline file; an empty path yields the
// default pipeline.
func loadPipeline(path string) (PipelineConfig, error) {
	if path == "" {
		return defaultPipeline(), nil
	}
	var cfg PipelineConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("pipeline %s: %w", path, err)
	}
	if len(cfg.Passes) == 0 {
		cfg.Passes = defaultPipeline().Passes
	}
	return cfg, nil
}

var passRegistry = map[string]func(*ir.World) error{
	"partial_evaluation": func(w *ir.World) error { transform.PartialEvaluation(w); return nil },
	"inliner":            func(w *ir.World) error { transform.Inliner(w); return nil },
	"lift_enters":        func(w *ir.World) error { transform.LiftEnters(w); return nil },
	"rewrite_flow_graphs": func(w *ir.World) error {
		transform.RewriteFlowGraphs(w)
		return nil
	},
	"cleanup": func(w *ir.World) error { w.Cleanup(); return nil },
	"verify":  ir.Verify,
}

// runPipeline applies the configured passes in order, reporting each pass
// through onPass.
func runPipeline(w *ir.World, cfg PipelineConfig, onPass func(string)) error {
	for _, name := range cfg.Passes {
		pass, ok := passRegistry[name]
		if !ok {
			return fmt.Errorf("unknown pass %q", name)
		}
		if onPass != nil {
			onPass(name)
		}
		if err := pass(w); err != nil {
			return fmt.Errorf("pass %s on %s: %w", name, w.Name(), err)
		}
	}
	return nil
}

// setupTracer installs a stderr stream tracer from the --trace flag or the
// pipeline config.
func setupTracer(w *ir.World, flagLevel string, cfg PipelineConfig) error {
	levelStr := flagLevel
	if levelStr == "" || levelStr == "off" {
		if cfg.Trace != "" {
			levelStr = cfg.Trace
		}
	}
	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	if level == trace.LevelOff {
		return nil
	}
	w.SetTracer(trace.NewStreamTracer(os.Stderr, level))
	return nil
}
