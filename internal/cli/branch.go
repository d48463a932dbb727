package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Validate branch names and sync the active task",
}

var branchCheckCmd = &cobra.Command{
	Use:   "check <branch>",
	Short: "Check a branch name against the naming convention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Binding == nil {
			return fmt.Errorf("branch binding not initialized")
		}

		if err := Binding.Validate(args[0]); err != nil {
			return err
		}

		if ref, ok := Binding.Parse(args[0]); ok {
			fmt.Printf("OK %s (task %s, story %s)\n", args[0], ref.TaskID, ref.StoryID)
		} else {
			fmt.Printf("OK %s\n", args[0])
		}
		return nil
	},
}

var branchChangedCmd = &cobra.Command{
	Use:   "changed <branch>",
	Short: "Sync the active-task pointer after a branch switch",
	Long: `Update the current-task pointer to follow a branch switch. A branch that
encodes a task ID activates that task; anything else clears the pointer so
stale task state never leaks across branches. The task state itself is not
read here; a task without recorded state only produces a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Binding == nil {
			return fmt.Errorf("branch binding not initialized")
		}

		taskID, err := Binding.OnBranchChanged(args[0])
		if err != nil {
			return fmt.Errorf("syncing task pointer: %w", err)
		}

		if taskID == models.NoCurrentTask {
			fmt.Println("No task bound to this branch.")
			return nil
		}

		fmt.Printf("Active task: %s\n", taskID)
		if Store != nil {
			if _, err := Store.Get(taskID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s has no recorded state. Run 'sdlcguard task new' to create it.\n", taskID)
			}
		}
		return nil
	},
}

func init() {
	branchCmd.AddCommand(branchCheckCmd)
	branchCmd.AddCommand(branchChangedCmd)
	rootCmd.AddCommand(branchCmd)
}
