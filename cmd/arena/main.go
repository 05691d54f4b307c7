package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/callwise/arena/logger"
)

var rootCmd = &cobra.Command{
	Use:           "arena",
	Short:         "Arena - goal-oriented conversation testing for scheduling agents",
	Version:       GetVersion(),
	SilenceUsage:  true,  // Don't print usage on error
	SilenceErrors: false, // Do print errors
	Long: `Arena drives multi-turn conversations against an appointment-scheduling
agent using synthetic caller personas, and judges each conversation against
declared goals and constraints.

Scenarios, personas, goals, and constraints are declared in YAML manifests;
results are written as JSON and optionally JUnit XML for CI consumption.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func Execute() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func main() {
	Execute()
}
