package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "outline",
	Short: "Extract heading outlines from documents",
	Long: `Outline classifies the text blocks of a document as TITLE, H1, H2, H3 or
body text and reconciles the labels into a clean, ordered outline.

Commands:
  extract   outline documents and write <name>.json per document
  train     fit a model bundle from labeled documents
  features  dump the feature matrix of a document`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./outliner.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(extractCmd, trainCmd, featuresCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads configuration without requiring the server-only settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateThresholds()
}
