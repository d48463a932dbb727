package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/storage"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (new, list, current, resume, phase, complete)",
	Long: `Unified task lifecycle commands.

Create new tasks bound to work branches, list and inspect task state,
advance phases, record externally run check results, and complete tasks
once their quality gates pass.`,
}

// taskNewKindFlag holds the --kind flag value for "task new".
var taskNewKindFlag string

var taskNewCmd = &cobra.Command{
	Use:   "new <story-id>",
	Short: "Create a new task for a story",
	Long: `Create a new task for the given story, allocate a sequential task ID,
create its work branch, and make it the active task.

Use --kind to specify the task kind (default: feat) and --description for
the branch name description segment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Manager == nil {
			return fmt.Errorf("task manager not initialized")
		}

		kind := models.TaskKind(taskNewKindFlag)
		description, _ := cmd.Flags().GetString("description")

		task, err := Manager.CreateTask(args[0], kind, description)
		if err != nil {
			return fmt.Errorf("creating %s task: %w", kind, err)
		}

		fmt.Printf("Created task %s\n", task.TaskID)
		fmt.Printf("  Story:  %s\n", task.StoryID)
		fmt.Printf("  Kind:   %s\n", task.Kind)
		fmt.Printf("  Branch: %s\n", task.Branch)
		fmt.Printf("  Phase:  %s\n", task.Phase.Current)

		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tasks",
	Long: `List active (non-archived) tasks, optionally filtered by status, story,
phase, or kind. Tasks are sorted by ID.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		statusFlag, _ := cmd.Flags().GetString("status")
		storyFlag, _ := cmd.Flags().GetString("story")
		phaseFlag, _ := cmd.Flags().GetString("phase")
		kindFlag, _ := cmd.Flags().GetString("kind")

		tasks, err := Store.List(storage.TaskFilter{
			Status:  models.TaskStatus(statusFlag),
			StoryID: storyFlag,
			Phase:   models.Phase(strings.ToUpper(phaseFlag)),
			Kind:    models.TaskKind(kindFlag),
		})
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		current := activeTaskID()
		fmt.Printf("%-12s %-10s %-10s %-12s %-16s %s\n",
			"TASK", "STORY", "KIND", "STATUS", "PHASE", "BRANCH")
		for _, t := range tasks {
			marker := " "
			if t.TaskID == current {
				marker = "*"
			}
			fmt.Printf("%-12s %-10s %-10s %-12s %-16s %s %s\n",
				t.TaskID, t.StoryID, t.Kind, t.Status, t.Phase.Current, t.Branch, marker)
		}

		return nil
	},
}

var taskCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Pointer == nil {
			return fmt.Errorf("task store not initialized")
		}

		taskID := activeTaskID()
		if taskID == models.NoCurrentTask {
			fmt.Println("No active task.")
			return nil
		}

		task, err := Store.Get(taskID)
		if err != nil {
			return fmt.Errorf("loading active task: %w", err)
		}

		printTaskDetail(task)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show full task state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		task, err := Store.Get(args[0])
		if err != nil {
			return fmt.Errorf("loading task: %w", err)
		}

		printTaskDetail(task)
		return nil
	},
}

var taskResumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Make an existing task the active task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Manager == nil {
			return fmt.Errorf("task manager not initialized")
		}

		task, err := Manager.ResumeTask(args[0])
		if err != nil {
			return fmt.Errorf("resuming task: %w", err)
		}

		fmt.Printf("Resumed task %s (%s) phase=%s branch=%s\n",
			task.TaskID, task.StoryID, task.Phase.Current, task.Branch)
		return nil
	},
}

var taskPhaseCmd = &cobra.Command{
	Use:   "phase <phase> [task-id]",
	Short: "Transition a task to a lifecycle phase",
	Long: `Transition a task to the named lifecycle phase (RESEARCH, PLANNING,
IMPLEMENTATION, TESTING, VALIDATION, COMPLETED). Defaults to the active
task when no task ID is given.

The previous phase's history entry is closed with its duration; re-entering
an earlier phase appends a fresh entry rather than rewriting history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Manager == nil {
			return fmt.Errorf("task manager not initialized")
		}

		phase := models.Phase(strings.ToUpper(args[0]))
		if !models.IsValidPhase(phase) {
			return fmt.Errorf("unknown phase %q (valid: %s)", args[0], phaseNames())
		}

		taskID, err := taskIDArg(args, 1)
		if err != nil {
			return err
		}

		if err := Manager.UpdatePhase(taskID, phase); err != nil {
			return fmt.Errorf("updating phase: %w", err)
		}

		fmt.Printf("Task %s is now in %s\n", taskID, phase)
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id> <field> <value>",
	Short: "Update a single task field",
	Long: `Update one field of a task's state record by dotted path, e.g.

  sdlcguard task update TASK-003 tests.total 42
  sdlcguard task update TASK-003 tests.passing true
  sdlcguard task update TASK-003 tests.coverage_percentage 87.5
  sdlcguard task update TASK-003 quality_gates.lint.status passed

Values are parsed as bool or number where possible, otherwise stored as
strings. The updated record is revalidated before writing; an invalid
value leaves the record untouched.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		taskID, fieldPath, raw := args[0], args[1], args[2]
		if err := Store.UpdateField(taskID, fieldPath, parseFieldValue(raw)); err != nil {
			return fmt.Errorf("updating %s: %w", fieldPath, err)
		}

		fmt.Printf("Updated %s %s\n", taskID, fieldPath)
		return nil
	},
}

var taskBaselineCmd = &cobra.Command{
	Use:   "set-baseline <task-id> <percent>",
	Short: "Set a task's coverage baseline",
	Long: `Set the coverage baseline a task must meet to complete. The baseline is
stamped at task creation and changes only through this explicit command,
never as a side effect of recording a test run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		baseline, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid baseline %q: %w", args[1], err)
		}

		if err := Store.SetCoverageBaseline(args[0], baseline); err != nil {
			return fmt.Errorf("setting baseline: %w", err)
		}

		fmt.Printf("Coverage baseline for %s set to %.1f%%\n", args[0], baseline)
		return nil
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Complete a task if its quality gates pass",
	Long: `Evaluate a task's quality gates and, if every gate passes, transition it
to COMPLETED and archive it. Defaults to the active task.

Completion is atomic: a single gate failure leaves the task untouched and
reports every failing gate, not just the first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Manager == nil {
			return fmt.Errorf("task manager not initialized")
		}

		taskID, err := taskIDArg(args, 0)
		if err != nil {
			return err
		}

		task, err := Manager.CompleteTask(taskID)
		if err != nil {
			return err
		}

		fmt.Printf("Completed task %s (%s)\n", task.TaskID, task.StoryID)
		return nil
	},
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen <task-id>",
	Short: "Restore an archived task to a resumable state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Manager == nil {
			return fmt.Errorf("task manager not initialized")
		}

		task, err := Manager.ReopenTask(args[0])
		if err != nil {
			return fmt.Errorf("reopening task: %w", err)
		}

		fmt.Printf("Reopened task %s (%s) phase=%s\n",
			task.TaskID, task.StoryID, task.Phase.Current)
		return nil
	},
}

// taskIDArg returns args[idx] when present, otherwise the active task ID.
func taskIDArg(args []string, idx int) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	taskID := activeTaskID()
	if taskID == models.NoCurrentTask {
		return "", fmt.Errorf("no active task; pass a task ID")
	}
	return taskID, nil
}

// activeTaskID reads the current-task pointer, treating any read failure
// as "no active task".
func activeTaskID() string {
	if Pointer == nil {
		return models.NoCurrentTask
	}
	taskID, err := Pointer.Current()
	if err != nil {
		return models.NoCurrentTask
	}
	return taskID
}

// parseFieldValue interprets a command-line value as bool, int, or float
// before falling back to string, so JSON state fields keep native types.
func parseFieldValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func phaseNames() string {
	names := make([]string, len(models.PhaseOrder))
	for i, p := range models.PhaseOrder {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func printTaskDetail(task *models.Task) {
	fmt.Printf("%s  %s  %s\n", task.TaskID, task.Status, task.Phase.Current)
	fmt.Printf("  Story:    %s\n", task.StoryID)
	fmt.Printf("  Kind:     %s\n", task.Kind)
	fmt.Printf("  Branch:   %s\n", task.Branch)
	fmt.Printf("  Tests:    total=%d passing=%t coverage=%.1f%% (baseline %.1f%%)\n",
		task.Tests.Total, task.Tests.Passing,
		task.Tests.CoveragePercentage, task.Tests.CoverageBaseline)
	fmt.Printf("  Gates:    lint=%s type_check=%s security=%s acceptance_criteria=%s\n",
		task.QualityGates.Lint.Status, task.QualityGates.TypeCheck.Status,
		task.QualityGates.Security.Status, task.QualityGates.AcceptanceCriteria.Status)
	fmt.Printf("  Commits:  %d\n", len(task.Commits))
	fmt.Printf("  Files:    %d\n", len(task.FilesModified))
	if len(task.AgentsUsed) > 0 {
		fmt.Printf("  Agents:   %s\n", strings.Join(task.AgentsUsed, ", "))
	}

	if gates := Gates; gates != nil {
		verdict := gates.Evaluate(task)
		if verdict.Passed {
			fmt.Println("  Verdict:  ready to complete")
		} else {
			fmt.Println("  Verdict:  not ready")
			for _, f := range verdict.Failures {
				fmt.Printf("    - %s\n", f)
			}
		}
	}
}

func init() {
	taskNewCmd.Flags().StringVar(&taskNewKindFlag, "kind", "feat",
		"Task kind (feat, fix, refactor, test, docs, chore)")
	taskNewCmd.Flags().StringP("description", "d", "", "Branch name description segment")

	taskListCmd.Flags().String("status", "", "Filter by status (not_started, in_progress, completed)")
	taskListCmd.Flags().String("story", "", "Filter by story ID")
	taskListCmd.Flags().String("phase", "", "Filter by current phase")
	taskListCmd.Flags().String("kind", "", "Filter by task kind")

	taskCmd.AddCommand(taskNewCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCurrentCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskResumeCmd)
	taskCmd.AddCommand(taskPhaseCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskBaselineCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskReopenCmd)
	rootCmd.AddCommand(taskCmd)
}