package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "procwatch",
	Short: "Operation sentinel for a monitored process tree",
	Long:  "Mediates file writes, deletes, process launches, and network connects attempted by a monitored process tree. Decides allow/deny/prompt per policy, escalates prompts to a human, and records every decision in a durable audit trail.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
