// cmd/accounts.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/observability"
	"github.com/xkilldash9x/portal-sentry/internal/registry"
	"github.com/xkilldash9x/portal-sentry/internal/store"
)

// newAccountsCmd groups local account management subcommands. These talk to
// the store directly; the daemon picks up changes on its next trigger seed or
// via the HTTP API.
func newAccountsCmd() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored merchant accounts",
	}
	accountsCmd.AddCommand(newAccountsListCmd())
	accountsCmd.AddCommand(newAccountsAddCmd())
	accountsCmd.AddCommand(newAccountsDeleteCmd())
	return accountsCmd
}

// openStore opens the configured store for a one-shot CLI operation.
func openStore() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.DataDir)
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their schedules and latest results",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			accounts, err := st.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCHEDULE\tEXPRESSION\tRESULT\tLAST RUN")
			for _, acc := range accounts {
				rec, err := st.GetStatus(cmd.Context(), acc.Name)
				if err != nil {
					rec = schemas.StatusRecord{Result: schemas.ResultPending}
				}
				lastRun := "-"
				if !rec.LastRunAt.IsZero() {
					lastRun = rec.LastRunAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					acc.Name, acc.Schedule, registry.ResolveExpression(acc.Schedule), rec.Result, lastRun)
			}
			return w.Flush()
		},
	}
}

func newAccountsAddCmd() *cobra.Command {
	var (
		username string
		password string
		loginURL string
		schedule string
		notify   bool
		emailTo  string
	)

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a merchant account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			acc := schemas.Account{
				Name:        args[0],
				Username:    username,
				Password:    password,
				LoginURL:    loginURL,
				Schedule:    schedule,
				NotifyOnRun: notify,
				EmailTo:     emailTo,
			}
			if err := st.CreateAccount(cmd.Context(), acc); err != nil {
				return err
			}
			fmt.Printf("Account %q created (schedule %q -> %s).\n",
				acc.Name, acc.Schedule, registry.ResolveExpression(acc.Schedule))
			return nil
		},
	}

	addCmd.Flags().StringVarP(&username, "username", "u", "", "portal username (falls back to SENTRY_PORTAL_USERNAME)")
	addCmd.Flags().StringVarP(&password, "password", "p", "", "portal password (falls back to SENTRY_PORTAL_PASSWORD)")
	addCmd.Flags().StringVar(&loginURL, "login-url", "", "login page override")
	addCmd.Flags().StringVarP(&schedule, "schedule", "s", "every_1h", "schedule preset or raw cron expression")
	addCmd.Flags().BoolVar(&notify, "notify", false, "email a report after every run")
	addCmd.Flags().StringVar(&emailTo, "email-to", "", "report recipient override")

	return addCmd
}

func newAccountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an account and its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			observability.GetLogger().Info("Account deleted")
			fmt.Printf("Account %q deleted.\n", args[0])
			return nil
		},
	}
}
