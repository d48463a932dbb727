package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

var hookPostToolUseCmd = &cobra.Command{
	Use:   "post-tool-use",
	Short: "Handle PostToolUse hook events",
	Long: `Record state after a tool executes. Reads tool_name and tool_input from
stdin JSON.

Tracks modified files on the active task, records new commits after git
commit commands, and syncs the active-task pointer after branch switches.
Never blocks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HookEngine == nil {
			return nil
		}

		input, err := hooks.ParseStdin[hooks.PostToolUseInput](os.Stdin)
		if err != nil {
			return nil // Swallow parse errors, don't block.
		}

		_ = HookEngine.HandlePostToolUse(*input)
		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookPostToolUseCmd)
}
