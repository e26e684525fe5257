package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the keep MCP server (stdio)",
	Long: `Start a Model Context Protocol (MCP) server that exposes keep items, tags
and projects as MCP tools via STDIO.

The --db flag is optional. If not provided, a system-specific default location will be used:
- Windows: %USERPROFILE%\AppData\Roaming\keep\keep.db
- macOS: ~/Library/Application Support/keep/keep.db
- Linux: ~/.local/share/keep/keep.db

Example:
  keep mcp
  keep mcp --db keep.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		srv := mcp.NewKeepMCPServer(stores)

		// Log to stderr so we don't contaminate the JSON-RPC stream on stdout.
		fmt.Fprintf(os.Stderr, "Keep MCP server started. Extensions: %v\n", stores.Items.Extensions())
		fmt.Fprintln(os.Stderr, "Listening for MCP JSON-RPC on STDIN/STDOUT ... (Ctrl+C to quit)")

		// Blocks until stdio closes.
		return srv.Start()
	},
}
