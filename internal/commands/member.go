package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

func newMemberCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}
	cmd.AddCommand(newMemberAddCommand(configPath))
	cmd.AddCommand(newMemberListCommand(configPath))
	cmd.AddCommand(newMemberRemoveCommand(configPath))
	return cmd
}

func newMemberAddCommand(configPath *string) *cobra.Command {
	var (
		name     string
		email    string
		notes    string
		start    string
		end      string
		fee      string
		interval int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}

			m, err := buildMember(name, email, notes, start, end, fee, interval)
			if err != nil {
				return err
			}

			created, err := st.CreateMember(cmd.Context(), m)
			if err != nil {
				return fmt.Errorf("creating member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created member %d (%s)\n", created.ID, created.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "member name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&start, "start", "", "membership start YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")
	cmd.Flags().StringVar(&end, "end", "", "membership end YYYY-MM-DD (empty = open-ended)")
	cmd.Flags().StringVar(&fee, "fee", "", "fee per interval, e.g. 10.00 (required)")
	_ = cmd.MarkFlagRequired("fee")
	cmd.Flags().IntVar(&interval, "interval", 1, "fee interval in periods")

	return cmd
}

func buildMember(name, email, notes, start, end, fee string, interval int) (model.Member, error) {
	startDate, err := parseDate(start)
	if err != nil {
		return model.Member{}, err
	}

	var endDate time.Time
	if end != "" {
		endDate, err = parseDate(end)
		if err != nil {
			return model.Member{}, err
		}
	}

	feeAmount, err := money.FromString(fee)
	if err != nil {
		return model.Member{}, fmt.Errorf("parsing fee: %w", err)
	}
	if !feeAmount.IsPositive() {
		return model.Member{}, fmt.Errorf("fee must be positive, got %s", feeAmount)
	}
	if interval <= 0 {
		return model.Member{}, fmt.Errorf("interval must be positive, got %d", interval)
	}

	return model.Member{
		Name:            name,
		Email:           email,
		Notes:           notes,
		MembershipStart: startDate,
		MembershipEnd:   endDate,
		Fee:             feeAmount,
		Interval:        interval,
	}, nil
}

func newMemberListCommand(configPath *string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}
			return runMemberList(cmd.Context(), st, name, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filter by name substring")
	return cmd
}

func runMemberList(ctx context.Context, st store.Store, name string, w io.Writer) error {
	members, err := st.Members(ctx, store.MemberFilter{Name: name})
	if err != nil {
		return fmt.Errorf("listing members: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFEE\tINTERVAL\tACCOUNT\tCALCULATED\tCURSOR")
	for _, m := range members {
		calculated := "-"
		if !m.AccountCalculatedAt.IsZero() {
			calculated = m.AccountCalculatedAt.Format(dateFormat)
		}
		cursor := "-"
		if !m.Cursor.IsZero() {
			cursor = m.Cursor.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			m.ID, m.Name, m.Fee, m.Interval, m.Account, calculated, cursor)
	}
	return tw.Flush()
}

func newMemberRemoveCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a member (bindings and transactions cascade)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing member id %q: %w", args[0], err)
			}

			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteMember(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted member %d\n", id)
			return nil
		},
	}
	return cmd
}
