// cmd/runtext/history.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/state"
	"github.com/spf13/cobra"
)

// historyPath resolves the history database from the settings file.
func historyPath(settings string) (string, error) {
	cfg, err := config.LoadGlobal(settings)
	if err != nil {
		return "", err
	}
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	return config.DefaultHistoryPath(), nil
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		contextName string
		limit       int
	)

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent trigger events and decisions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := historyPath(opts.settings)
			if err != nil {
				return err
			}
			db, err := state.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.GetHistory(contextName, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-16s %-10s %-9s %-8s %-8s %s\n",
				"TIME", "CONTEXT", "TRIGGER", "ACTIVITY", "COUNTER", "DECISION", "OBSERVED")
			fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, t := range records {
				fmt.Fprintf(out, "%-20s %-16s %-10s %-9s %-8d %-8s %s\n",
					t.Timestamp.Local().Format(time.DateTime), t.Context, t.Trigger,
					t.Activity, t.Counter, t.Decision, t.Observed)
				if t.Errors != "" {
					fmt.Fprintf(out, "  errors: %s\n", t.Errors)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "only show this context")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	return cmd
}
