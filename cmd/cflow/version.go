package main

import (
	"strings"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cflow",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(constraintflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
