package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/bistro/pkg/budget"
	"github.com/pario-ai/bistro/pkg/ledger"
)

func newBudgetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect live API budgets",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show API usage vs budget limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Budget.Enabled || len(cfg.Budget.Policies) == 0 {
				fmt.Fprintln(out, "Budget enforcement is disabled.")
				return nil
			}

			l, err := ledger.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			statuses, err := budget.New(cfg.Budget.Policies, l).Status(context.Background())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERIOD\tMAX CALLS\tCALLS\tMAX TOKENS\tTOKENS\tEXHAUSTED")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%t\n",
					s.Policy.Period, limitString(s.Policy.MaxAPICalls), s.APICalls,
					limitString(s.Policy.MaxTokens), s.Tokens, s.Exhausted)
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.AddCommand(statusCmd)
	return cmd
}

func limitString(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
