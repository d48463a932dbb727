package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

var hookSessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Handle SessionStart hook events",
	Long: `Inject task context at session start. Reads session metadata from stdin
JSON, syncs the active-task pointer with the checked-out branch, and writes
a context summary to stdout. Never blocks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HookEngine == nil {
			return nil
		}

		input, err := hooks.ParseStdin[hooks.SessionStartInput](os.Stdin)
		if err != nil {
			return nil // Swallow parse errors, don't block.
		}

		_ = HookEngine.HandleSessionStart(*input, os.Stdout)
		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookSessionStartCmd)
}
