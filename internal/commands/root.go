package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/duesbook/duesbook/internal/buildinfo"
	"github.com/duesbook/duesbook/internal/config"
	"github.com/duesbook/duesbook/internal/store"
	"github.com/duesbook/duesbook/internal/store/postgres"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "duesbook",
		Short:   "Membership dues ledger and bank reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "duesbook.yaml", "path to duesbook.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newMemberCommand(&configPath))
	rootCmd.AddCommand(newBindingCommand(&configPath))
	rootCmd.AddCommand(newImportCommand(&configPath))
	rootCmd.AddCommand(newReconcileCommand(&configPath))
	rootCmd.AddCommand(newUnmatchedCommand(&configPath))

	return rootCmd
}

// openStore loads the config and connects to the database.
func openStore(configPath string) (*config.Config, store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	url := cfg.DatabaseURL()
	if url == "" {
		return nil, nil, fmt.Errorf("no database configured: set database.url in %s or DATABASE_URL", configPath)
	}
	st, err := postgres.Open(url)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

const dateFormat = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q (want YYYY-MM-DD): %w", s, err)
	}
	return d, nil
}
