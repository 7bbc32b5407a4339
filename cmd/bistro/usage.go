package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/bistro/pkg/ledger"
)

func newUsageCmd() *cobra.Command {
	var (
		configPath string
		since      string
		daily      bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show answered questions by source from the usage ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			start := time.Now().UTC().AddDate(0, 0, -30)
			if since != "" {
				start, err = time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
				}
			}

			l, err := ledger.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			ctx := context.Background()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			if daily {
				days, err := l.Daily(ctx, start)
				if err != nil {
					return err
				}
				if len(days) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No usage recorded.")
					return nil
				}
				fmt.Fprintln(w, "DAY\tCACHED\tAPI\tFALLBACK\tTOKENS")
				for _, d := range days {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", d.Day, d.Cached, d.API, d.Fallback, d.Tokens)
				}
				return w.Flush()
			}

			summaries, err := l.Summary(ctx, start)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No usage recorded.")
				return nil
			}
			fmt.Fprintln(w, "SOURCE\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				model := s.Model
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.Source, model, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.Flags().StringVar(&since, "since", "", "start date YYYY-MM-DD (default: 30 days ago)")
	cmd.Flags().BoolVar(&daily, "daily", false, "break usage down per day")
	return cmd
}
