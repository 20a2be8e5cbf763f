// cmd/runtext/mcp.go
package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/colebrumley/runtext/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server [config]",
		Short: "Serve contexts and history over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
list_contexts and context_history tools.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := historyPath(opts.settings)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(opts.contextsPath(args), dbPath)
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}
			defer server.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx)
		},
	}
}
