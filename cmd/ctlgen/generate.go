package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/ctlgen/config"
	"github.com/artpar/ctlgen/core/classify"
	"github.com/artpar/ctlgen/core/emit"
	"github.com/artpar/ctlgen/core/spec"
)

var generateCmd = &cobra.Command{
	Use:   "generate [files...]",
	Short: "Generate controller code from definition files",
	Long: `Generate controller code for each definition file.

Files can be given as arguments or listed under "inputs" in the config
file. Each power.ctl.go produces a power_ctl.go next to it unless
--output redirects it elsewhere.

Examples:
  ctlgen generate internal/power/power.ctl.go
  ctlgen generate --output gen internal/*/*.ctl.go
  ctlgen generate --watch`,
	RunE: runGenerate,
}

var (
	generateOutputDir     string
	generateRuntimeImport string
	generateWatch         bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutputDir, "output", "o", "", "output directory (default: alongside each input)")
	generateCmd.Flags().StringVar(&generateRuntimeImport, "runtime-import", "", "override the runtime package import path in generated code")
	generateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "regenerate whenever a definition file changes")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	inputs, err := resolveInputs(cfg, args)
	if err != nil {
		return err
	}

	outDir := cfg.Output.Dir
	if generateOutputDir != "" {
		outDir = generateOutputDir
	}

	gen := emit.NewGenerator()
	if generateRuntimeImport != "" {
		gen.SetRuntimeImport(generateRuntimeImport)
	} else if cfg.Output.RuntimeImport != "" {
		gen.SetRuntimeImport(cfg.Output.RuntimeImport)
	}

	if err := runPass(logger, gen, inputs, outDir); err != nil {
		if !generateWatch {
			return err
		}
		// In watch mode a broken definition is not fatal: the author is
		// about to fix it and save again.
		logger.Error().Err(err).Msg("generation failed")
	}

	if !generateWatch {
		return nil
	}

	watcher, err := config.NewWatcher(inputs, logger, func(path string) {
		if _, err := generateOne(logger, gen, path, outDir); err != nil {
			logger.Error().Err(err).Str("input", path).Msg("regeneration failed")
		}
	})
	if err != nil {
		return err
	}
	watcher.Start()
	defer watcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}

// resolveInputs prefers explicit arguments over the config file's globs.
func resolveInputs(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		for _, a := range args {
			if _, err := os.Stat(a); err != nil {
				return nil, fmt.Errorf("input %s: %w", a, err)
			}
		}
		return args, nil
	}

	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("no definition files: give them as arguments or list them under inputs in %s", cfgFile)
	}
	return cfg.ResolveInputs()
}

// runPass generates every input once. The run id ties the per-file log
// lines of one pass together in watch mode.
func runPass(logger zerolog.Logger, gen *emit.Generator, inputs []string, outDir string) error {
	log := logger.With().Str("run_id", uuid.New().String()[:8]).Logger()

	for _, input := range inputs {
		out, err := generateOne(log, gen, input, outDir)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		log.Info().Str("input", input).Str("output", out).Msg("generated controller")
	}
	return nil
}

func generateOne(logger zerolog.Logger, gen *emit.Generator, input, outDir string) (string, error) {
	ctrl, err := spec.ParseFile(input)
	if err != nil {
		return "", err
	}

	plan, err := classify.Classify(ctrl)
	if err != nil {
		return "", err
	}

	code, err := gen.Generate(plan, filepath.Base(input))
	if err != nil {
		return "", err
	}

	out := emit.OutputPath(input)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
		out = filepath.Join(outDir, filepath.Base(out))
	}

	if err := os.WriteFile(out, code, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}

	logger.Debug().
		Str("controller", plan.Name).
		Int("operations", len(plan.Proxied)).
		Int("signals", len(plan.Signals)).
		Msg("classified definition")

	return out, nil
}
