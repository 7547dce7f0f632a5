package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"timelens/internal/preset"
)

var catalogPath string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the preset catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the catalog, reporting its contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := preset.Load(catalogPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog OK: %d presets, %d option groups, %d stories\n",
			len(catalog.Presets), len(catalog.Options), len(catalog.Stories))
		for group, mappings := range catalog.Options {
			fmt.Fprintf(cmd.OutOrStdout(), "  group %s: %d options\n", group, len(mappings))
		}
		for theme, beats := range catalog.Stories {
			fmt.Fprintf(cmd.OutOrStdout(), "  story %s: %d beats\n", theme, len(beats))
		}
		return nil
	},
}

func init() {
	catalogValidateCmd.Flags().StringVar(&catalogPath, "path", "", "catalog file (default: embedded catalog)")
	catalogCmd.AddCommand(catalogValidateCmd)
}
