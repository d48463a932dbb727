package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdlcguard/sdlcguard/internal/observability"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// TaskWorkflowStore is the slice of the task store the manager needs.
type TaskWorkflowStore interface {
	Create(storyID string, kind models.TaskKind) (*models.Task, error)
	Get(taskID string) (*models.Task, error)
	UpdateField(taskID, fieldPath string, value any) error
	TransitionPhase(taskID string, phase models.Phase) error
	Archive(taskID string) error
	Unarchive(taskID string) error
}

// GitBrancher extends GitInfo with branch creation.
type GitBrancher interface {
	GitInfo
	CreateBranch(name string) error
}

// GateFailureError carries the individual gate failures that kept a task
// from completing.
type GateFailureError struct {
	TaskID   string
	Failures []string
}

func (e *GateFailureError) Error() string {
	return fmt.Sprintf("task %s cannot complete:\n  - %s",
		e.TaskID, strings.Join(e.Failures, "\n  - "))
}

// TaskManager drives the task lifecycle: creation with a bound branch,
// resumption, phase progression, and gated completion.
type TaskManager struct {
	basePath      string
	branchPattern string
	store         TaskWorkflowStore
	pointer       CurrentPointer
	git           GitBrancher
	gates         *GateAggregator
	events        observability.EventLog
}

// NewTaskManager creates a TaskManager. git and events may be nil (branch
// creation and audit events disabled).
func NewTaskManager(
	basePath string,
	branchPattern string,
	store TaskWorkflowStore,
	pointer CurrentPointer,
	git GitBrancher,
	gates *GateAggregator,
	events observability.EventLog,
) *TaskManager {
	return &TaskManager{
		basePath:      basePath,
		branchPattern: branchPattern,
		store:         store,
		pointer:       pointer,
		git:           git,
		gates:         gates,
		events:        events,
	}
}

// CreateTask allocates a task for the story, creates its work branch, and
// activates it. The story must have a document under stories/ when that
// directory is in use.
func (m *TaskManager) CreateTask(storyID string, kind models.TaskKind, description string) (*models.Task, error) {
	if storyID == "" {
		return nil, fmt.Errorf("creating task: story id is required")
	}
	if err := m.checkStoryDoc(storyID); err != nil {
		return nil, err
	}

	task, err := m.store.Create(storyID, kind)
	if err != nil {
		return nil, err
	}

	branch := FormatBranchName(m.branchPattern, kind, task.TaskID, storyID, description)
	if m.git != nil {
		if err := m.git.CreateBranch(branch); err != nil {
			return nil, fmt.Errorf("creating branch %s for %s: %w", branch, task.TaskID, err)
		}
	}
	if err := m.store.UpdateField(task.TaskID, "branch", branch); err != nil {
		return nil, err
	}
	task.Branch = branch

	if err := m.pointer.Set(task.TaskID); err != nil {
		return nil, fmt.Errorf("activating %s: %w", task.TaskID, err)
	}

	m.logEvent("INFO", "task.created", fmt.Sprintf("%s created on %s", task.TaskID, branch), task.TaskID, map[string]any{
		"story_id": storyID,
		"kind":     string(kind),
		"branch":   branch,
	})
	return task, nil
}

// checkStoryDoc requires a story document when the stories/ directory
// exists. Repositories without one skip story tracking entirely.
func (m *TaskManager) checkStoryDoc(storyID string) error {
	dir := filepath.Join(m.basePath, "stories")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == storyID+".md" || strings.HasPrefix(name, storyID+"-") {
			return nil
		}
	}
	return fmt.Errorf("story %s has no document under stories/", storyID)
}

// ResumeTask points the current-task pointer back at an existing task.
func (m *TaskManager) ResumeTask(taskID string) (*models.Task, error) {
	task, err := m.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	if err := m.pointer.Set(taskID); err != nil {
		return nil, fmt.Errorf("activating %s: %w", taskID, err)
	}
	m.logEvent("INFO", "task.resumed", taskID+" resumed", taskID, nil)
	return task, nil
}

// UpdatePhase moves the task to the given lifecycle phase.
func (m *TaskManager) UpdatePhase(taskID string, phase models.Phase) error {
	if err := m.store.TransitionPhase(taskID, phase); err != nil {
		return err
	}
	m.logEvent("INFO", "task.phase_changed", fmt.Sprintf("%s entered %s", taskID, phase), taskID, map[string]any{
		"phase": string(phase),
	})
	return nil
}

// CompleteTask evaluates every quality gate and, only if all pass, moves the
// task to COMPLETED and archives it. On gate failure the task is untouched
// and the error lists everything left to fix.
func (m *TaskManager) CompleteTask(taskID string) (*models.Task, error) {
	task, err := m.store.Get(taskID)
	if err != nil {
		return nil, err
	}

	verdict := m.gates.Evaluate(task)
	if !verdict.Passed {
		m.logEvent("WARN", "task.completion_blocked", taskID+" failed quality gates", taskID, map[string]any{
			"failures": verdict.Failures,
		})
		return nil, &GateFailureError{TaskID: taskID, Failures: verdict.Failures}
	}

	if err := m.store.TransitionPhase(taskID, models.PhaseCompleted); err != nil {
		return nil, err
	}
	if err := m.store.Archive(taskID); err != nil {
		return nil, err
	}

	if current, perr := m.pointer.Current(); perr == nil && current == taskID {
		if err := m.pointer.Set(models.NoCurrentTask); err != nil {
			return nil, fmt.Errorf("clearing current task pointer: %w", err)
		}
	}

	m.logEvent("INFO", "task.completed", taskID+" completed and archived", taskID, nil)
	return m.store.Get(taskID)
}

// ReopenTask moves an archived task back into the active namespace and
// activates it.
func (m *TaskManager) ReopenTask(taskID string) (*models.Task, error) {
	if err := m.store.Unarchive(taskID); err != nil {
		return nil, err
	}
	if err := m.pointer.Set(taskID); err != nil {
		return nil, fmt.Errorf("activating %s: %w", taskID, err)
	}
	m.logEvent("INFO", "task.reopened", taskID+" unarchived", taskID, nil)
	return m.store.Get(taskID)
}

func (m *TaskManager) logEvent(level, eventType, msg, taskID string, data map[string]any) {
	if m.events == nil {
		return
	}
	_ = m.events.Write(observability.Event{
		Level:   level,
		Type:    eventType,
		TaskID:  taskID,
		Message: msg,
		Data:    data,
	})
}
