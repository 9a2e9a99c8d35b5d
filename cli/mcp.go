// ABOUTME: MCP server subcommand
// ABOUTME: Serves lead lookups, manual records, and passes to MCP clients over stdio
package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/handlers"
)

// MCPCommand starts the MCP server on stdio.
func MCPCommand(app *App, version string) error {
	// stdout carries the protocol; logs go to stderr.
	app.Logger.Info("starting leadsync MCP server", "version", version)

	server := handlers.NewServer(version, app.Leads, app.Engine, app.Passes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, &mcp.StdioTransport{})
}
