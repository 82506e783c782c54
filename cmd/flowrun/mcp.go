package main

import (
	"github.com/aretw0/flowrun/internal/cli"
	"github.com/aretw0/flowrun/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [flow-source]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the flows of the source as MCP tools over standard input and output, so
agents can start sessions and answer their conditions.

Logs go to stderr to keep stdout free for JSON-RPC.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cli.NewLogger(cfg)
		engine, err := cli.NewEngine(cfg, sourcePath(args), logger)
		if err != nil {
			return err
		}

		backend, err := cli.OpenBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcp.NewServer(cli.NewManager(cfg, engine, backend), engine.Loader(), logger)
		logger.Info("starting flowrun MCP server (stdio)")
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
