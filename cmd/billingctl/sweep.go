package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire lapsed non-renewing plans once",
	Long: `Run one pass of the scheduled expiry sweep. Auto-renewing plans are left
for the launch check; everything else past its end date is expired.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		now, err := parseAt(sweepAt)
		if err != nil {
			return err
		}
		expired, err := a.svcs.Sweeper.Sweep(ctx, now)
		if err != nil {
			a.logger.Error("Sweep finished with errors", zap.Int("expired", expired), zap.Error(err))
			return err
		}
		fmt.Printf("Expired %d subscription(s)\n", expired)
		return nil
	}),
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "sweep as of this RFC3339 time instead of now")
}
