package cli

import (
	"fmt"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
	"github.com/felixgeelhaar/decision-ledger/interfaces/mcp"
)

func (a *App) newServeMCPCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose the ledger as MCP tools",
		Long: `Serve the ledger and approval workflow as MCP tools.

Runs on stdio by default. Pass --http to listen on an address instead.

Examples:
  ledger serve-mcp -c ledger.yaml
  ledger serve-mcp -c ledger.yaml --http :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				srv := mcp.NewServer(sys, mcp.Config{Version: Version})
				if addr != "" {
					fmt.Fprintf(a.stderr, "serving MCP over HTTP on %s\n", addr)
					return srv.ServeHTTP(cmd.Context(), addr)
				}
				return srv.ServeStdio(cmd.Context(),
					mcpgo.WithMiddleware(mcpgo.Chain(mcpgo.Recover(), mcpgo.RequestID())))
			})
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "Listen address for HTTP transport")
	return cmd
}
