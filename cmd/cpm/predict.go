package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/internal/platform"
	"github.com/aretw0/cpm/pkg/hsm"
)

var (
	predictIn  string
	predictOut string
)

var predictCmd = &cobra.Command{
	Use:       "predict <model>",
	Short:     "Predict every row of an input table",
	Long:      `Predict every row of an input table. Rows that fail keep their inputs and report the failure in the error column.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: hsm.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openModel(args[0])
		if err != nil {
			return err
		}
		s, err := platform.PredictFile(cmd.Context(), m, predictIn, predictOut,
			platform.WithConfig(cfg), platform.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

func printSummary(w io.Writer, s platform.Summary) {
	fmt.Fprintf(w, "%s: %d rows predicted into %s", s.Model, s.Rows-s.Failed, s.Output)
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", s.Failed)
	}
	if s.Warnings > 0 {
		fmt.Fprintf(w, ", %d warnings", s.Warnings)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVarP(&predictIn, "input", "i", "", "Input table")
	predictCmd.Flags().StringVarP(&predictOut, "output", "o", "", "Output table (default: <input>_result.<ext>)")
	predictCmd.MarkFlagRequired("input")
}
