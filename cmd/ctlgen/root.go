package main

import (
	"fmt"
	"os"

	"github.com/artpar/ctlgen/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ctlgen",
	Short: "Generate single-writer controllers from annotated Go definition files",
	Long: `ctlgen turns an annotated struct and its methods into a controller:
a single goroutine that owns the state, a client facade for request/reply
calls, and broadcast streams for published fields and signals.

Definition files carry a "ctldef" build tag and //ctl: directives:

  //ctl:controller   marks the state-holding struct
  //ctl:publish      broadcasts a field's value on every change
  //ctl:getter       exposes a read accessor on the client
  //ctl:setter       exposes a write accessor on the client
  //ctl:signal       declares a fire-and-forget event method

Quick start:
  ctlgen validate power.ctl.go   # Check a definition file
  ctlgen generate power.ctl.go   # Write power_ctl.go alongside it
  ctlgen generate --watch        # Regenerate on every save`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")
}

// newLogger builds the CLI logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
