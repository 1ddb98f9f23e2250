package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/store"
)

func newUnmatchedCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unmatched",
		Short: "List transactions no binding could attribute",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}
			return runUnmatched(cmd.Context(), st, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runUnmatched(ctx context.Context, st store.Store, w io.Writer) error {
	txs, err := st.UnattributedTransactions(ctx)
	if err != nil {
		return fmt.Errorf("listing unattributed transactions: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tACCOUNT\tAMOUNT\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date.Format(dateFormat), t.AccountName, t.Amount, t.Description)
	}
	return tw.Flush()
}
