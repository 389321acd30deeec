package cmd

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/askdesk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the assistant, knowledge search, transcripts and human handoff as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		a, err := newApp(context.Background(), cfg, logger, appOptions{withHandoffs: true})
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		logger.Info("askdesk MCP server started on stdio", "retrieval", a.retriever.URL())

		srv := mcpserver.NewServer(a.orch, a.retriever, a.handoffs, cfg.Retrieval.TopK, cfg.Retrieval.Timeout)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
