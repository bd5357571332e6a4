package commands

import (
	"github.com/spf13/cobra"

	"invsim/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decompose, forecast and simulate tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(cfg, catalogs, Version).Serve(cmd.Context())
	},
}
