package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [user-id]",
	Short: "Stop auto renewal for a user",
	Long: `Cancel the user's active subscription. Access continues until the end
date; a plan managed by the gateway is set to cancel at period end there too.

Examples:
  billingctl cancel user_123`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		res, err := a.svcs.Cancellation.Cancel(ctx, args[0], timeutil.Now())
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		if res.AlreadyCancelled {
			fmt.Printf("Subscription of %s was already cancelled\n", args[0])
		} else {
			fmt.Printf("Cancelled subscription of %s\n", args[0])
		}
		if res.Subscription != nil {
			fmt.Printf("  Access until: %s\n", formatDate(res.Subscription.EndDate))
		}
		return nil
	}),
}
