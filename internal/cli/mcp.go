package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hirepal/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the recruiter tools over MCP stdio",
	Long:  "Serve the recruiter tools over MCP stdio. Logs go to stderr; stdout carries the protocol.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := buildRuntime(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		server, err := mcpserver.New(rt.Service, log)
		if err != nil {
			return err
		}
		return mcpserver.Run(ctx, server, log)
	},
}
