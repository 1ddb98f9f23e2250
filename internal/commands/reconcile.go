package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/fees"
	"github.com/duesbook/duesbook/internal/reconcile"
	"github.com/duesbook/duesbook/pkg/logger"
)

func newReconcileCommand(configPath *string) *cobra.Command {
	var (
		asOf     string
		memberID int64
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fold pending transactions and fee accrual into member accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := openStore(*configPath)
			if err != nil {
				return err
			}

			asOfDate := lastMonthEnd(time.Now())
			if asOf != "" {
				asOfDate, err = parseDate(asOf)
				if err != nil {
					return err
				}
			}

			log := logger.New(cfg.LogLevel)
			sched := fees.NewScheduler(fees.IntervalUnit(cfg.Fees.IntervalUnit))
			rec := reconcile.New(st, sched, cfg.Reconcile.Retries)

			out := cmd.OutOrStdout()
			if memberID != 0 {
				outcome := rec.ReconcileMember(cmd.Context(), memberID, asOfDate)
				printOutcome(out, outcome)
				return outcome.Err
			}

			runner := reconcile.NewRunner(st, rec, log, cfg.Reconcile.Workers)
			results, err := runner.Run(cmd.Context(), asOfDate)
			if err != nil {
				return err
			}
			for _, outcome := range results {
				printOutcome(out, outcome)
			}
			return results.Err()
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "accrue fees through this date (default: end of last month)")
	cmd.Flags().Int64Var(&memberID, "member", 0, "reconcile only this member")
	return cmd
}

func printOutcome(w io.Writer, o reconcile.Outcome) {
	switch o.Status {
	case reconcile.StatusCommitted:
		fmt.Fprintf(w, "member %d: committed %s\n", o.MemberID, o.Delta)
	case reconcile.StatusAborted:
		fmt.Fprintf(w, "member %d: aborted: %v\n", o.MemberID, o.Err)
		if o.Failed != nil {
			fmt.Fprintf(w, "  offending transaction %d (%s, %s): %s\n",
				o.Failed.ID, o.Failed.Date.Format(dateFormat), o.Failed.Amount, o.Failed.Description)
		}
	default:
		fmt.Fprintf(w, "member %d: nothing to do\n", o.MemberID)
	}
}

// lastMonthEnd returns the last day of the previous month, the natural
// cutoff for periodic reconciliation runs.
func lastMonthEnd(now time.Time) time.Time {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 0, -1)
}
