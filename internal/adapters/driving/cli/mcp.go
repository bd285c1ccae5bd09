package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/mcp"
	"github.com/custodia-labs/kbchat/internal/core/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query the
knowledge base.

Tools:
  ask       - answer a question from the knowledge base
  retrieve  - return the passages nearest to a query
  ingest    - ingest a corpus directory

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  kbchat mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  kbchat mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "kbchat": {
        "command": "/path/to/kbchat",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, domain.PurposeAnswer)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	server, err := mcp.NewServer(&mcp.Ports{
		Answer:    app.Answers,
		Retriever: app.Retriever,
		Ingest:    app.Ingest,
		Index:     app.Deps.VectorIndex,
		Chunks:    app.Deps.TextStore,
		CorpusDir: app.Settings.CorpusDir,
		TopK:      app.Settings.Retrieval.TopK,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
