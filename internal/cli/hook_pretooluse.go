package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

var hookPreToolUseCmd = &cobra.Command{
	Use:   "pre-tool-use",
	Short: "Handle PreToolUse hook events (blocking)",
	Long: `Validate before a tool executes. Reads tool_name and tool_input from
stdin JSON.

Blocks the tool execution (exit 2) if:
- a file edit targets a path owned by a different actor
- a shell command creates a branch violating the naming convention

Only positively determined mismatches block; when the actor or target path
cannot be determined, the tool runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HookEngine == nil {
			return nil
		}

		input, err := hooks.ParseStdin[hooks.PreToolUseInput](os.Stdin)
		if err != nil {
			return nil // Swallow parse errors, don't block.
		}

		if err := HookEngine.HandlePreToolUse(*input); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			osExit(2)
		}

		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookPreToolUseCmd)
}
