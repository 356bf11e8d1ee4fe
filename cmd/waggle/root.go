package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waggle",
	Short: "Parallel task swarm orchestrator",
	Long: `Waggle decomposes a request into parallelizable tasks, runs them with
maximal safe parallelism, and pivots the plan when tasks fail.

Core capabilities:
- Decomposes work into a dependency-ordered task plan
- Executes independent tasks concurrently under an admission limit
- Shares progress on a blackboard every task can observe
- Re-plans around failures instead of aborting the run
- Tracks token usage against a budget and refuses work past it`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
