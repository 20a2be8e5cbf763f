// cmd/runtext/validate.go
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/colebrumley/runtext/internal/action"
	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/driver"
	"github.com/colebrumley/runtext/internal/security"
	"github.com/colebrumley/runtext/internal/trigger"
	"github.com/spf13/cobra"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config]",
		Short: "Check a contexts file without running it",
		Long: fmt.Sprintf(`Load the contexts file, validate every context and resolve each
trigger and action name. Nothing is started.

Triggers: %s
Actions:  %s`, strings.Join(trigger.Names, ", "), strings.Join(action.Names, ", ")),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts.contextsPath(args))
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	if err := security.ValidateConfigFile(path); err != nil {
		if errors.Is(err, security.ErrUnsafePermissions) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		} else {
			return err
		}
	}

	contexts, err := config.LoadContexts(path)
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range contexts {
		d, err := driver.New(c)
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(out, "invalid  %s: %v\n", c.Name, err)
			continue
		}
		d.Close()
		fmt.Fprintf(out, "valid    %s (%s: %s -> %s)\n", c.Name, c.TriggerBehavior,
			strings.Join(c.TriggerNames(), ", "), strings.Join(c.ActionNames(), ", "))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d contexts are invalid: %w", len(errs), len(contexts), errors.Join(errs...))
	}
	fmt.Fprintf(out, "Validated %d contexts\n", len(contexts))
	return nil
}
