package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "sdlcguard",
	Short: "Task orchestration and policy enforcement for AI-assisted development",
	Long: `sdlcguard keeps multi-agent development sessions honest: every unit of
work is a task bound 1:1 to a branch, file mutations are gated by directory
ownership, and tasks cannot complete until their quality gates pass.

It provides CLI commands for managing the task lifecycle, resolving path
ownership, evaluating quality gates, and handling coding-assistant hook
events.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sdlcguard %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
