package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "timelensctl",
	Short:         "Operational tooling for the timelens generation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(resultsCmd)
}
