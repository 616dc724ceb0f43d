package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/pkg/hsm"
)

var keyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))

func styleKey(key string) string { return keyStyle.Render(key) }

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range hsm.Names() {
			desc, _ := hsm.Describe(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s  %s\n", name, desc)
		}
	},
}

var describeCmd = &cobra.Command{
	Use:       "describe <model>",
	Short:     "Show the layers and elements of a model",
	Args:      cobra.ExactArgs(1),
	ValidArgs: hsm.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := hsm.Describe(args[0])
		if err != nil {
			return err
		}
		m, err := openModel(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", desc, m)
		return nil
	},
}

var howCmd = &cobra.Command{
	Use:       "how <model>",
	Short:     "Document the inputs a model expects",
	Args:      cobra.ExactArgs(1),
	ValidArgs: hsm.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openModel(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), m.How(styleKey))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(howCmd)
}
