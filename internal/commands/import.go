package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/importer"
	"github.com/duesbook/duesbook/internal/match"
	"github.com/duesbook/duesbook/internal/model"
	"github.com/duesbook/duesbook/internal/store"
)

func newImportCommand(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank statement exports as transactions",
		Long: `Import parses bank statement exports and appends their rows to the
transaction ledger. Without arguments it processes every CSV in the
import/ directory and moves finished files to import/processed/.
Imported rows are inert until the next reconcile run folds them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(*configPath)
			if err != nil {
				return err
			}

			registry := importer.DefaultRegistry()
			parser := registry.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown statement format %q", format)
			}

			if len(args) > 0 {
				for _, path := range args {
					if err := importFile(cmd, st, parser, path); err != nil {
						return err
					}
				}
				return nil
			}

			files, err := importer.Scan(".")
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import")
				return nil
			}
			for _, f := range files {
				if err := importFile(cmd, st, parser, f.Path); err != nil {
					return err
				}
				if err := importer.MarkProcessed(".", f.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "sepa", "statement format")
	return cmd
}

func importFile(cmd *cobra.Command, st store.Store, parser importer.Parser, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	summary, err := runImport(cmd.Context(), st, parser, f)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if summary.Skipped > 0 {
		fmt.Fprintf(out, "%s: imported %d transactions, skipped %d already in the ledger\n",
			path, summary.Imported, summary.Skipped)
	} else {
		fmt.Fprintf(out, "%s: imported %d transactions\n", path, summary.Imported)
	}
	for _, s := range summary.Suggestions {
		fmt.Fprintf(out, "  hint: unbound account %q looks like member %d (%s); consider: duesbook binding add --member %d --iban <IBAN> --holder %q\n",
			s.AccountName, s.Member.ID, s.Member.Name, s.Member.ID, s.AccountName)
	}
	return nil
}

// Suggestion pairs an unbound statement account with the member whose
// name matches it.
type Suggestion struct {
	AccountName string
	Member      model.Member
}

// ImportSummary reports one import run.
type ImportSummary struct {
	Imported    int
	Skipped     int
	Suggestions []Suggestion
}

// runImport parses and ingests one statement, then proposes bindings
// for unbound accounts whose holder name matches exactly one member.
func runImport(ctx context.Context, st store.Store, parser importer.Parser, r io.Reader) (ImportSummary, error) {
	records, err := parser.Parse(r)
	if err != nil {
		return ImportSummary{}, err
	}

	res, err := importer.Ingest(ctx, st, records)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{Imported: len(res.Inserted), Skipped: res.Skipped}

	members, err := st.Members(ctx, store.MemberFilter{})
	if err != nil {
		return summary, err
	}

	seen := make(map[string]bool)
	for _, tx := range res.Inserted {
		bindings, err := st.BindingsForIdentifier(ctx, tx.Identifier)
		if err != nil {
			return summary, err
		}
		if len(bindings) > 0 || seen[tx.Identifier] {
			continue
		}
		seen[tx.Identifier] = true
		if m, ok := match.SuggestMember(tx.AccountName, members); ok {
			summary.Suggestions = append(summary.Suggestions, Suggestion{
				AccountName: tx.AccountName,
				Member:      m,
			})
		}
	}
	return summary, nil
}
