package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an arena manifest without running tests",
	Long: `Load the arena manifest, resolve its persona and scenario references,
and report schema errors and cross-reference warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateManifest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "arena.yaml", "Arena manifest path")
	validateCmd.Flags().BoolP("verbose", "v", false, "Enable verbose debug logging")
}

func validateManifest(cmd *cobra.Command) error {
	cfg, err := loadManifest(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: OK (%d scenarios)\n", cfg.SourceFile, len(cfg.Scenarios))
	for _, sc := range cfg.Scenarios {
		fmt.Fprintf(out, "  %-30s persona=%s goals=%d constraints=%d max_turns=%d\n",
			sc.Name, sc.Persona.Name, len(sc.Goals), len(sc.Constraints), sc.MaxTurns)
	}
	for _, w := range cfg.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}
