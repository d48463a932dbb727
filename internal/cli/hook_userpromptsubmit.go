package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

var hookUserPromptSubmitCmd = &cobra.Command{
	Use:   "user-prompt-submit",
	Short: "Handle UserPromptSubmit hook events (blocking)",
	Long: `Validate prompt prerequisites. Reads the prompt from stdin JSON.

Blocks the prompt (exit 2) if:
- a task lifecycle command is used with no active task
- the prompt references a story with no document under stories/`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HookEngine == nil {
			return nil
		}

		input, err := hooks.ParseStdin[hooks.UserPromptSubmitInput](os.Stdin)
		if err != nil {
			return nil // Swallow parse errors, don't block.
		}

		if err := HookEngine.HandleUserPromptSubmit(*input); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			osExit(2)
		}

		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookUserPromptSubmitCmd)
}
