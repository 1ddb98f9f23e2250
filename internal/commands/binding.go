package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/ident"
	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/money"
	"github.com/duesbook/duesbook/internal/store"
)

func newBindingCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binding",
		Short: "Manage bank identifier bindings",
	}
	cmd.AddCommand(newBindingAddCommand(configPath))
	cmd.AddCommand(newBindingListCommand(configPath))
	cmd.AddCommand(newBindingRemoveCommand(configPath))
	return cmd
}

func newBindingAddCommand(configPath *string) *cobra.Command {
	var (
		memberID int64
		iban     string
		holder   string
		token    string
		subject  string
		split    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Bind a bank account identifier to a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}

			b, err := buildBinding(memberID, iban, holder, token, subject, split)
			if err != nil {
				return err
			}
			if err := st.CreateBinding(cmd.Context(), b); err != nil {
				return fmt.Errorf("creating binding: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to member %d\n", b.Identifier, b.MemberID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member id (required)")
	_ = cmd.MarkFlagRequired("member")
	cmd.Flags().StringVar(&iban, "iban", "", "bank account IBAN (hashed before storage; needs --holder)")
	cmd.Flags().StringVar(&holder, "holder", "", "account holder name, as it appears on statements")
	cmd.Flags().StringVar(&token, "token", "", "pre-derived identifier token (alternative to --iban)")
	cmd.Flags().StringVar(&subject, "subject", "", "only match transactions containing this text")
	cmd.Flags().StringVar(&split, "split", "", "fixed amount to carve out of shared transactions")

	return cmd
}

func buildBinding(memberID int64, iban, holder, token, subject, split string) (model.IdentifierBinding, error) {
	switch {
	case token != "" && iban != "":
		return model.IdentifierBinding{}, fmt.Errorf("--iban and --token are mutually exclusive")
	case token == "" && iban == "":
		return model.IdentifierBinding{}, fmt.Errorf("one of --iban or --token is required")
	case iban != "" && holder == "":
		return model.IdentifierBinding{}, fmt.Errorf("--iban requires --holder")
	}

	identifier := token
	if iban != "" {
		identifier = ident.Token(iban, holder)
	}

	b := model.IdentifierBinding{
		MemberID:     memberID,
		Identifier:   identifier,
		MatchSubject: subject,
	}
	if split != "" {
		amount, err := money.FromString(split)
		if err != nil {
			return model.IdentifierBinding{}, fmt.Errorf("parsing split amount: %w", err)
		}
		b.SplitAmount = &amount
	}
	return b, nil
}

func newBindingListCommand(configPath *string) *cobra.Command {
	var memberID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a member's bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}
			return runBindingList(cmd.Context(), st, memberID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member id (required)")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func runBindingList(ctx context.Context, st store.Store, memberID int64, w io.Writer) error {
	bindings, err := st.BindingsForMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("listing bindings: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tSUBJECT\tSPLIT")
	for _, b := range bindings {
		subject := "-"
		if b.HasSubject() {
			subject = b.MatchSubject
		}
		split := "-"
		if b.SplitAmount != nil {
			split = b.SplitAmount.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Identifier, subject, split)
	}
	return tw.Flush()
}

func newBindingRemoveCommand(configPath *string) *cobra.Command {
	var (
		memberID int64
		token    string
	)

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Remove a binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteBinding(cmd.Context(), memberID, token); err != nil {
				return fmt.Errorf("deleting binding: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed binding %s from member %d\n", token, memberID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member id (required)")
	_ = cmd.MarkFlagRequired("member")
	cmd.Flags().StringVar(&token, "token", "", "identifier token (required)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}
