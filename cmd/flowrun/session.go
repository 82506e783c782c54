package main

import (
	"os"

	"github.com/aretw0/flowrun/internal/cli"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect, and remove sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd, func(b *cli.Backend) error {
			return cli.ListSessions(cmd.Context(), b, os.Stdout)
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withBackend(cmd, func(b *cli.Backend) error {
			var flows ports.FlowLoader
			if format == cli.FormatMermaid {
				engine, err := cli.NewEngine(cfg, cfg.Flows, cli.NewLogger(cfg))
				if err != nil {
					return err
				}
				flows = engine.Loader()
			}
			return cli.InspectSession(cmd.Context(), b, flows, args[0], format, os.Stdout)
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b *cli.Backend) error {
			return cli.RemoveSessions(cmd.Context(), b, args, os.Stdout)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().String("format", cli.FormatJSON, "output format: json or mermaid")
}

func withBackend(cmd *cobra.Command, fn func(*cli.Backend) error) error {
	backend, err := cli.OpenBackend(cmd.Context(), cfg, cli.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend)
}
