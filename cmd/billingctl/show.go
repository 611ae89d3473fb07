package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevin07696/subscription-service/internal/domain"
)

const dateLayout = "2006-01-02 15:04 MST"

var showCmd = &cobra.Command{
	Use:   "show [user-id]",
	Short: "Show a user's subscription, history and payments",
	Long: `Display the current subscription record, superseded records and the
payment ledger of one account. Nothing is modified.

Examples:
  billingctl show user_123`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		acc, err := a.svcs.Access.Account(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}
		printAccount(os.Stdout, acc)
		return nil
	}),
}

func printAccount(w io.Writer, acc *domain.Account) {
	fmt.Fprintf(w, "User: %s\n", acc.UserID())

	cur := acc.Current()
	if cur == nil {
		fmt.Fprintln(w, "  No plan selected")
	} else {
		fmt.Fprintln(w, "Current:")
		printRecord(w, cur)
	}

	if history := acc.History(); len(history) > 0 {
		fmt.Fprintf(w, "History (%d):\n", len(history))
		for i := range history {
			printRecord(w, &history[i])
		}
	}

	payments := acc.Payments()
	if len(payments) == 0 {
		return
	}
	fmt.Fprintf(w, "Payments (%d):\n", len(payments))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tTYPE\tAMOUNT\tSTATUS\tSOURCE\tDATE")
	for _, p := range payments {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Type, domain.FormatMinorUnits(p.Amount), p.Status, p.Source, formatDate(p.Date))
	}
	_ = tw.Flush()
}

func printRecord(w io.Writer, r *domain.SubscriptionRecord) {
	fmt.Fprintf(w, "  %-8s %-10s %s -> %s  payment=%s amount=%s autoRenew=%t\n",
		r.Type, r.Status, formatDate(r.StartDate), formatDate(r.EndDate),
		r.PaymentID, domain.FormatMinorUnits(r.Amount), r.AutoRenew)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}
