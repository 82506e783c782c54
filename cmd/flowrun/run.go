package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/flowrun/internal/cli"
	"github.com/aretw0/flowrun/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flow-source]",
	Short: "Chat through a flow in the terminal",
	Long: `Runs a flow as an interactive chat. Every condition node reads one line.
Type /reset to start over, exit or quit to leave. With --session the conversation
is saved to the configured store and resumed on the next run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flowID, _ := cmd.Flags().GetString("flow")
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")
		style, _ := cmd.Flags().GetString("style")

		logger := cli.NewLogger(cfg)
		engine, err := cli.NewEngine(cfg, sourcePath(args), logger)
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		opts := cli.ChatOptions{
			FlowID:    flowID,
			SessionID: sessionID,
			Headless:  headless,
			In:        os.Stdin,
			Out:       os.Stdout,
			Logger:    logger,
		}
		if sessionID != "" {
			backend, err := cli.OpenBackend(sigCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			opts.Store = backend.Store
		}

		if headless {
			opts.Printer = tui.NewPrinter(os.Stdout, nil, termenv.WithProfile(termenv.Ascii))
		} else {
			if cli.IsTerminal(os.Stdout) {
				tui.PrintBanner(os.Stdout)
			} else {
				style = "notty"
			}
			render, err := tui.NewRenderer(style, cli.TerminalWidth(os.Stdout, 80))
			if err != nil {
				return fmt.Errorf("invalid style %q: %w", style, err)
			}
			opts.Printer = tui.NewPrinter(os.Stdout, render)
		}

		snap, err := cli.RunChat(sigCtx, engine, opts)
		if errors.Is(err, context.Canceled) && sigCtx.Signal() != nil && snap != nil {
			if !headless {
				fmt.Printf("[CTRL+C]\n>>> Interrupted at '%s' node.\n", snap.CurrentNodeID)
			}
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("flow", "", "flow id (required when the source holds several flows)")
	runCmd.Flags().String("session", "", "persist and resume the conversation under this id")
	runCmd.Flags().Bool("headless", false, "plain output without banner, prompts or system lines")
	runCmd.Flags().String("style", "", "glamour style for bot messages (default detects the background)")
}
