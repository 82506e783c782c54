package main

import (
	"fmt"

	"github.com/aretw0/flowrun"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flowrun",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowrun version %s\n", flowrun.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
