package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timelens/internal/infra"
	"timelens/internal/quota"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and maintain quota records",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Print a user's quota record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openQuotaStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user:            %s\n", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "daily usage:     %d\n", rec.DailyUsage)
		fmt.Fprintf(cmd.OutOrStdout(), "weekly usage:    %d\n", rec.WeeklyUsage)
		fmt.Fprintf(cmd.OutOrStdout(), "total usage:     %d\n", rec.TotalUsage)
		fmt.Fprintf(cmd.OutOrStdout(), "last generation: %s\n", formatTime(rec.LastGeneration))
		fmt.Fprintf(cmd.OutOrStdout(), "last reset:      %s\n", formatTime(rec.LastDailyReset))
		return nil
	},
}

var quotaSweepCmd = &cobra.Command{
	Use:     "sweep",
	Aliases: []string{"reset"},
	Short:   "Reset every record whose daily boundary has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infra.LoadConfig()
		if err != nil {
			return err
		}
		loc, err := cfg.ResetLocation()
		if err != nil {
			return err
		}
		store, cleanup, err := openQuotaStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		now := time.Now().In(loc)
		boundary := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		touched, err := store.ResetExpired(cmd.Context(), boundary)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d records\n", touched)
		return nil
	},
}

var quotaCapacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Print the remaining global capacity pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openQuotaStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		remaining, err := store.RemainingCapacity(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remaining capacity: %d\n", remaining)
		return nil
	},
}

func openQuotaStore(ctx context.Context) (quota.Store, func(), error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required for quota commands")
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return quota.NewPostgresStore(pool), pool.Close, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func init() {
	quotaCmd.AddCommand(quotaShowCmd)
	quotaCmd.AddCommand(quotaSweepCmd)
	quotaCmd.AddCommand(quotaCapacityCmd)
}
