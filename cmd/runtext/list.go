// cmd/runtext/list.go
package main

import (
	"fmt"
	"strings"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list [config]",
		Short:         "List the configured contexts",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			contexts, err := config.LoadContexts(opts.contextsPath(args))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(contexts) == 0 {
				fmt.Fprintln(out, "No contexts found")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-9s %-25s %s\n", "NAME", "BEHAVIOR", "TRIGGERS", "ACTIONS")
			fmt.Fprintln(out, strings.Repeat("-", 70))
			for _, c := range contexts {
				fmt.Fprintf(out, "%-20s %-9s %-25s %s\n", c.Name, c.TriggerBehavior,
					strings.Join(c.TriggerNames(), ","), strings.Join(c.ActionNames(), ","))
			}
			return nil
		},
	}
}
