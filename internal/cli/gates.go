package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Evaluate quality gates",
}

var gatesEvaluateCmd = &cobra.Command{
	Use:   "evaluate [task-id]",
	Short: "Evaluate a task's quality gates",
	Long: `Evaluate every quality gate for a task (tests, coverage vs. baseline,
check results, commit message format) and report all failures, not just
the first. Defaults to the active task. Exits non-zero on failure.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Gates == nil {
			return fmt.Errorf("task store not initialized")
		}

		taskID, err := taskIDArg(args, 0)
		if err != nil {
			return err
		}

		task, err := Store.Get(taskID)
		if err != nil {
			return fmt.Errorf("loading task: %w", err)
		}

		verdict := Gates.Evaluate(task)
		if verdict.Passed {
			fmt.Printf("PASS %s: all quality gates satisfied\n", taskID)
			return nil
		}

		fmt.Printf("FAIL %s:\n", taskID)
		for _, f := range verdict.Failures {
			fmt.Printf("  - %s\n", f)
		}
		return fmt.Errorf("%d gate failure(s)", len(verdict.Failures))
	},
}

func init() {
	gatesCmd.AddCommand(gatesEvaluateCmd)
	rootCmd.AddCommand(gatesCmd)
}
