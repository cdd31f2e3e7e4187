package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run MCP server for AI assistant access",
	Long: `Start an MCP (Model Context Protocol) server over stdio.

This allows AI assistants like Claude Desktop to query the chat archive.

Add to Claude Desktop config:
  {
    "mcpServers": {
      "chatarchive": {
        "command": "chatarchive",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, engine, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		defer engine.Close()

		return mcp.Serve(cmd.Context(), engine, s, Version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
