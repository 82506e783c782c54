package main

import (
	"fmt"

	"github.com/aretw0/flowrun/internal/cli"
	"github.com/aretw0/flowrun/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow-source]",
	Short: "Check flows for authoring mistakes",
	Long: `Lints every flow of the source: start node count, dangling references,
unreachable nodes, dead ends and condition nodes without branches.
Warnings are reported; errors fail the command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetString("flow")
		ctx := cmd.Context()

		engine, err := cli.NewEngine(cfg, sourcePath(args), cli.NewLogger(cfg))
		if err != nil {
			return err
		}

		ids := []string{only}
		if only == "" {
			if ids, err = engine.Flows(ctx); err != nil {
				return err
			}
		}

		failed := 0
		for _, id := range ids {
			flow, err := engine.Flow(ctx, id)
			if err != nil {
				fmt.Printf("%s: %v\n", id, err)
				failed++
				continue
			}
			issues := validator.Lint(flow)
			for _, issue := range issues {
				fmt.Printf("%s: %s\n", id, issue)
			}
			if validator.Validate(flow) != nil {
				failed++
				continue
			}
			fmt.Printf("Flow '%s' is valid! ✅\n", id)
		}

		if failed > 0 {
			return fmt.Errorf("validation failed: %d of %d flows have errors", failed, len(ids))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("flow", "", "validate only this flow id")
}
