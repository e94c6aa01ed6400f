package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/ctlgen/config"
	"github.com/artpar/ctlgen/core/classify"
	"github.com/artpar/ctlgen/core/spec"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check definition files without generating code",
	Long: `Validate definition files.

Checks:
  - The file parses as Go
  - Exactly one struct carries //ctl:controller
  - Every controller method takes a context.Context first
  - No parameter or result uses a reference type
  - Signal methods have no body and no results

Examples:
  ctlgen validate power.ctl.go
  ctlgen validate internal/*/*.ctl.go`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}

	inputs, err := resolveInputs(cfg, args)
	if err != nil {
		return err
	}

	failed := 0
	for _, input := range inputs {
		fmt.Printf("Validating %s...\n", input)

		ctrl, err := spec.ParseFile(input)
		if err != nil {
			fmt.Printf("  %s Definition shape valid\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("  %s Definition shape valid\n", checkMark)

		plan, err := classify.Classify(ctrl)
		if err != nil {
			fmt.Printf("  %s No name collisions\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("  %s No name collisions\n", checkMark)

		fmt.Printf("  %s Controller: %s\n", checkMark, plan.Name)
		fmt.Printf("  %s Fields: %d (published: %d)\n", checkMark, len(plan.Fields), countPublished(plan))
		fmt.Printf("  %s Accessors: %d\n", checkMark, len(plan.Accessors))
		fmt.Printf("  %s Operations: %d\n", checkMark, len(plan.Proxied))
		fmt.Printf("  %s Signals: %d\n", checkMark, len(plan.Signals))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(inputs))
	}
	fmt.Printf("\nAll %d files valid\n", len(inputs))
	return nil
}

func countPublished(p *classify.Plan) int {
	n := 0
	for _, f := range p.Fields {
		if f.Publish {
			n++
		}
	}
	return n
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
