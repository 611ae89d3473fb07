package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

var reconcileAt string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [user-id]",
	Short: "Run the launch access check for a user",
	Long: `Evaluate access exactly as the app does on launch: a lapsed auto-renewing
plan is renewed, any other lapsed plan is expired, then the decision is printed.

Examples:
  billingctl reconcile user_123
  billingctl reconcile user_123 --at 2024-03-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		now, err := parseAt(reconcileAt)
		if err != nil {
			return err
		}

		decision, err := a.svcs.Access.Evaluate(ctx, args[0], now)
		if err != nil {
			return fmt.Errorf("failed to evaluate access: %w", err)
		}

		fmt.Printf("User:    %s\n", args[0])
		fmt.Printf("  State:   %s\n", decision.State)
		fmt.Printf("  Route:   %s\n", decision.Route)
		if decision.Reason != "" {
			fmt.Printf("  Reason:  %s\n", decision.Reason)
		}
		if decision.Renewed {
			fmt.Println("  Renewed: yes")
		}
		if sub := decision.Subscription; sub != nil {
			fmt.Printf("  Plan:    %s %s until %s\n", sub.Type, sub.Status, formatDate(sub.EndDate))
		}
		return nil
	}),
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileAt, "at", "", "evaluate at this RFC3339 time instead of now")
}

func parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return timeutil.Now(), nil
	}
	t, err := timeutil.ParseRFC3339(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t, nil
}
