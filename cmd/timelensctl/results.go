package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"timelens/internal/infra"
	"timelens/internal/storage"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect archived generation results",
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print an archived result record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infra.LoadConfig()
		if err != nil {
			return err
		}
		archive, err := storage.NewArchive(cfg.ArchivePath)
		if err != nil {
			return err
		}
		result, err := archive.LoadResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run:       %s\n", result.RunID)
		fmt.Fprintf(cmd.OutOrStdout(), "state:     %s\n", result.State)
		fmt.Fprintf(cmd.OutOrStdout(), "backend:   %s\n", result.Backend)
		if result.OutputURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "output:    %s\n", result.OutputURL)
		}
		if result.Reason != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "reason:    %s\n", result.Reason)
		}
		if result.FallbackUsed {
			fmt.Fprintln(cmd.OutOrStdout(), "fallback:  legacy backend served this run")
		}
		return nil
	},
}

func init() {
	resultsCmd.AddCommand(resultsShowCmd)
}
