package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), GetVersionInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Version information - can be overridden at build time with -ldflags
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the current version string.
func GetVersion() string {
	if version != "dev" {
		return version
	}

	// Fall back to module build info when not stamped by the build
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return "dev"
}

// GetVersionInfo returns detailed version information.
func GetVersionInfo() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("arena version %s", GetVersion()))
	if gitCommit != "" {
		b.WriteString(fmt.Sprintf("\ncommit: %s", gitCommit))
	}
	if buildDate != "" {
		b.WriteString(fmt.Sprintf("\nbuilt: %s", buildDate))
	}
	return b.String()
}
