package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/internal/platform"
	"github.com/aretw0/cpm/pkg/hsm"
)

var (
	templateOut  string
	templateRows int

	randomOut  string
	randomRows int
	randomSeed uint64
)

var templateCmd = &cobra.Command{
	Use:       "template <model>",
	Short:     "Write an empty input table for a model",
	Args:      cobra.ExactArgs(1),
	ValidArgs: hsm.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openModel(args[0])
		if err != nil {
			return err
		}
		if err := platform.TemplateFile(m, templateOut, templateRows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Template with %d rows written to %s\n", templateRows, templateOut)
		return nil
	},
}

var randomCmd = &cobra.Command{
	Use:       "random <model>",
	Short:     "Write a table of random feasible inputs for a model",
	Args:      cobra.ExactArgs(1),
	ValidArgs: hsm.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openModel(args[0])
		if err != nil {
			return err
		}
		if err := platform.RandomFile(m, randomOut, randomRows, randomSeed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d random rows written to %s\n", randomRows, randomOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "template.csv", "Output table")
	templateCmd.Flags().IntVarP(&templateRows, "rows", "n", 1, "Number of rows")

	rootCmd.AddCommand(randomCmd)
	randomCmd.Flags().StringVarP(&randomOut, "output", "o", "random.csv", "Output table")
	randomCmd.Flags().IntVarP(&randomRows, "rows", "n", 10, "Number of rows")
	randomCmd.Flags().Uint64Var(&randomSeed, "seed", 1, "Random seed")
}
