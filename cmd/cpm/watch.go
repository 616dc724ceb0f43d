package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/internal/platform"
	"github.com/aretw0/cpm/pkg/adapters/table"
	"github.com/aretw0/cpm/pkg/adapters/watch"
	"github.com/aretw0/cpm/pkg/core"
	"github.com/aretw0/cpm/pkg/hsm"
)

var (
	watchPattern  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <model> <dir>",
	Short: "Predict every input table created or modified in a directory",
	Long: `Watch a directory and predict every input table created or modified in it.
Results are written next to the input as <name>_result.<ext> and are never
predicted again.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return hsm.Names(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openModel(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchDir(ctx, m, args[1], watchPattern)
	},
}

// watchDir predicts tables under dir until ctx is done.
func watchDir(ctx context.Context, m *core.Model, dir, pattern string) error {
	logger := slog.Default().With("model", m.Name(), "dir", dir)
	src, err := watch.NewSource(dir,
		watch.WithPattern(pattern),
		watch.WithIgnore("**/*"+platform.ResultSuffix+".*"),
		watch.WithDebounce(watchDebounce),
		watch.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := src.Start(ctx); err != nil {
		return err
	}
	logger.Info("watching for input tables", "pattern", pattern)

	for ev := range src.Events() {
		e, ok := ev.(watch.Event)
		if !ok || platform.IsResult(e.Path) {
			continue
		}
		s, err := platform.PredictFile(ctx, m, e.Path, "",
			platform.WithConfig(cfg), platform.WithLogger(logger))
		if err != nil {
			logger.Error("prediction failed", "input", e.Path, "error", err)
			continue
		}
		printSummary(os.Stdout, s)
	}
	return nil
}

func defaultWatchPattern() string {
	exts := table.Extensions()
	for i, ext := range exts {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	return "**/*.{" + strings.Join(exts, ",") + "}"
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", defaultWatchPattern(), "Glob of input tables, relative to the directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 250*time.Millisecond, "Quiet period before a changed table is predicted")
}
