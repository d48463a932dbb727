package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

var hookSubagentStopCmd = &cobra.Command{
	Use:   "subagent-stop",
	Short: "Handle SubagentStop hook events",
	Long: `Record subagent completion. Reads the subagent type from stdin JSON.

Adds the agent to the active task's agents_used set and warns (stderr,
never blocking) when a configured role rule's deliverables are missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HookEngine == nil {
			return nil
		}

		input, err := hooks.ParseStdin[hooks.SubagentStopInput](os.Stdin)
		if err != nil {
			return nil // Swallow parse errors, don't block.
		}

		_ = HookEngine.HandleSubagentStop(*input)
		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookSubagentStopCmd)
}
