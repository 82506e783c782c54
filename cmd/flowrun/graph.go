package main

import (
	"fmt"

	"github.com/aretw0/flowrun/internal/cli"
	"github.com/aretw0/flowrun/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [flow-source]",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a flow. With --session the path the
session took is highlighted and its current node marked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flowID, _ := cmd.Flags().GetString("flow")
		sessionID, _ := cmd.Flags().GetString("session")
		ctx := cmd.Context()

		logger := cli.NewLogger(cfg)
		engine, err := cli.NewEngine(cfg, sourcePath(args), logger)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			backend, err := cli.OpenBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			snap, err := cli.LoadSession(ctx, backend, sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			overlay = graph.OverlayFromSession(snap)
			if flowID == "" {
				flowID = snap.FlowID
			}
		}

		if flowID == "" {
			if flowID, err = engine.DefaultFlow(ctx); err != nil {
				return err
			}
		}
		flow, err := engine.Flow(ctx, flowID)
		if err != nil {
			return err
		}

		fmt.Print(graph.GenerateMermaid(flow, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("flow", "", "flow id (required when the source holds several flows)")
	graphCmd.Flags().String("session", "", "highlight the path of this stored session")
}
