package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes a retrieve tool, an ingest_book tool and the books and
collections resources. By default it communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which also serves Prometheus
metrics on /metrics.

Examples:
  # Stdio mode (default, for desktop assistants)
  sercha-rag mcp serve

  # HTTP mode (for MCP Inspector, remote access, metrics scraping)
  sercha-rag mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "sercha-rag": {
        "command": "/path/to/sercha-rag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// mcpPorts resolves every port the MCP server can use. Ingestion is optional
// so a retrieval-only deployment still starts.
func mcpPorts(cmd *cobra.Command) (*mcp.Ports, error) {
	ctx := cmd.Context()

	retrieval, err := retrievalPort(ctx)
	if err != nil {
		return nil, err
	}
	ports := &mcp.Ports{Retrieval: retrieval}

	if svc, err := settingsPort(); err == nil {
		settings, err := svc.Get()
		if err != nil {
			return nil, err
		}
		ports.Defaults = settings.Retrieval.Params()
	}
	if library, err := libraryPort(ctx); err == nil {
		ports.Library = library
	} else {
		logger.Warn("Books resource disabled: %v", err)
	}
	ingestion, ingestErr := ingestionPort(ctx)
	loader, loadErr := loaderPort()
	if ingestErr == nil && loadErr == nil {
		ports.Ingestion = ingestion
		ports.Loader = loader
	}
	return ports, nil
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports, err := mcpPorts(cmd)
	if err != nil {
		return err
	}

	var opts []mcp.Option
	if application != nil {
		opts = append(opts, mcp.WithMetricsHandler(application.Metrics().Handler()))
	}
	server, err := mcp.NewServer(ports, opts...)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
