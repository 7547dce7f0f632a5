package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"timelens/internal/domain"
	"timelens/internal/flags"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Show capability routing flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := flags.NewStore(flags.EnvSource())
		if err != nil {
			return err
		}
		for _, capability := range domain.Capabilities() {
			backend := "legacy"
			if store.UseNewBackend(capability) {
				backend = "new"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", capability, backend)
		}
		return nil
	},
}
