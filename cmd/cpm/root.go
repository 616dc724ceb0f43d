package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/internal/platform"
	"github.com/aretw0/cpm/pkg/core"
)

var (
	verbose    bool
	configPath string

	cfg = platform.DefaultConfig()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cpm",
	Short: "Crash prediction modeling with the Highway Safety Manual models",
	Long: `cpm predicts crash frequencies of road sites with the models of the
Highway Safety Manual 1st Ed. Inputs and results are tables in CSV, TSV,
JSON, YAML or XLSX format.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := platform.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: cpm.yaml at the project root)")
}

func openModel(name string) (*core.Model, error) {
	return platform.OpenModel(name, platform.WithConfig(cfg), platform.WithLogger(slog.Default()))
}
