package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

func newManager(t *testing.T, store *fakeStore, ptr *fakePointer, git *fakeGit) *TaskManager {
	t.Helper()
	var brancher GitBrancher
	if git != nil {
		brancher = git
	}
	return NewTaskManager(t.TempDir(), "", store, ptr, brancher, NewGateAggregator(true), nil)
}

func TestCreateTaskBindsBranchAndActivates(t *testing.T) {
	store := newFakeStore()
	ptr := &fakePointer{}
	git := &fakeGit{}
	m := newManager(t, store, ptr, git)

	task, err := m.CreateTask("US-3", models.KindFeat, "login form")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.TaskID != "TASK-001" {
		t.Errorf("TaskID = %q", task.TaskID)
	}
	if task.Branch != "feat/TASK-001-login-form-US-3" {
		t.Errorf("Branch = %q", task.Branch)
	}
	if len(git.created) != 1 || git.created[0] != task.Branch {
		t.Errorf("branches created = %v", git.created)
	}
	if ptr.val != "TASK-001" {
		t.Errorf("pointer = %q", ptr.val)
	}
}

func TestCreateTaskWithoutGit(t *testing.T) {
	m := newManager(t, newFakeStore(), &fakePointer{}, nil)

	task, err := m.CreateTask("US-1", models.KindChore, "cleanup")
	if err != nil {
		t.Fatalf("CreateTask without git: %v", err)
	}
	if task.Branch == "" {
		t.Error("branch name should still be recorded")
	}
}

func TestCreateTaskRequiresStoryID(t *testing.T) {
	m := newManager(t, newFakeStore(), &fakePointer{}, &fakeGit{})

	if _, err := m.CreateTask("", models.KindFeat, "x"); err == nil {
		t.Fatal("expected error for empty story id")
	}
}

func TestCreateTaskStoryDocRequiredWhenTracked(t *testing.T) {
	store := newFakeStore()
	ptr := &fakePointer{}
	git := &fakeGit{}
	base := t.TempDir()
	m := NewTaskManager(base, "", store, ptr, git, NewGateAggregator(true), nil)

	storiesDir := filepath.Join(base, "stories")
	if err := os.MkdirAll(storiesDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(storiesDir, "US-3-login.md"), []byte("# US-3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := m.CreateTask("US-3", models.KindFeat, "login"); err != nil {
		t.Errorf("documented story rejected: %v", err)
	}
	if _, err := m.CreateTask("US-9", models.KindFeat, "ghost"); err == nil {
		t.Error("undocumented story accepted")
	}
}

func TestResumeTask(t *testing.T) {
	task := &models.Task{TaskID: "TASK-004", Status: models.StatusInProgress}
	store := newFakeStore(task)
	ptr := &fakePointer{}
	m := newManager(t, store, ptr, &fakeGit{})

	got, err := m.ResumeTask("TASK-004")
	if err != nil {
		t.Fatalf("ResumeTask: %v", err)
	}
	if got.TaskID != "TASK-004" || ptr.val != "TASK-004" {
		t.Errorf("task = %s, pointer = %q", got.TaskID, ptr.val)
	}

	if _, err := m.ResumeTask("TASK-999"); !models.IsTaskNotFound(err) {
		t.Errorf("ResumeTask unknown = %v, want not-found", err)
	}
}

func TestCompleteTaskGateFailure(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	store := newFakeStore(task)
	ptr := &fakePointer{val: "TASK-001"}
	m := newManager(t, store, ptr, &fakeGit{})

	_, err := m.CompleteTask("TASK-001")
	if err == nil {
		t.Fatal("expected gate failure")
	}
	var gateErr *GateFailureError
	if !errors.As(err, &gateErr) {
		t.Fatalf("error type = %T", err)
	}
	if len(gateErr.Failures) == 0 {
		t.Error("failures not reported")
	}
	if task.Status == models.StatusCompleted {
		t.Error("failed completion must not change status")
	}
	if ptr.val != "TASK-001" {
		t.Error("failed completion must not clear pointer")
	}
}

func TestCompleteTaskSuccess(t *testing.T) {
	task := passingTask()
	store := newFakeStore(task)
	ptr := &fakePointer{val: task.TaskID}
	m := newManager(t, store, ptr, &fakeGit{})

	got, err := m.CompleteTask(task.TaskID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Phase.Current != models.PhaseCompleted {
		t.Errorf("status = %s, phase = %s", got.Status, got.Phase.Current)
	}
	if ptr.val != models.NoCurrentTask {
		t.Errorf("pointer = %q, want %q", ptr.val, models.NoCurrentTask)
	}
}

func TestCompleteTaskLeavesOtherPointer(t *testing.T) {
	task := passingTask()
	store := newFakeStore(task, &models.Task{TaskID: "TASK-002"})
	ptr := &fakePointer{val: "TASK-002"}
	m := newManager(t, store, ptr, &fakeGit{})

	if _, err := m.CompleteTask(task.TaskID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if ptr.val != "TASK-002" {
		t.Errorf("pointer = %q, completing a background task must not steal it", ptr.val)
	}
}

func TestCompleteTaskGateErrorMessageListsFailures(t *testing.T) {
	task := passingTask()
	task.Tests.CoveragePercentage = 50
	task.QualityGates.Security = models.CheckResult{Status: models.CheckNotRun}
	store := newFakeStore(task)
	m := newManager(t, store, &fakePointer{}, &fakeGit{})

	_, err := m.CompleteTask(task.TaskID)
	if err == nil {
		t.Fatal("expected gate failure")
	}
	for _, want := range []string{"coverage", "security"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestUpdatePhase(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001"}
	store := newFakeStore(task)
	m := newManager(t, store, &fakePointer{}, &fakeGit{})

	if err := m.UpdatePhase("TASK-001", models.PhaseTesting); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	if task.Phase.Current != models.PhaseTesting {
		t.Errorf("phase = %s", task.Phase.Current)
	}
}

func TestReopenTask(t *testing.T) {
	task := &models.Task{TaskID: "TASK-003", Status: models.StatusCompleted}
	store := newFakeStore(task)
	ptr := &fakePointer{}
	m := newManager(t, store, ptr, &fakeGit{})

	got, err := m.ReopenTask("TASK-003")
	if err != nil {
		t.Fatalf("ReopenTask: %v", err)
	}
	if got.TaskID != "TASK-003" || ptr.val != "TASK-003" {
		t.Errorf("task = %s, pointer = %q", got.TaskID, ptr.val)
	}
}
