package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cpm"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cpm",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cpm version %s\n", cpm.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
