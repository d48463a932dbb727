package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
	"github.com/sdlcguard/sdlcguard/internal/policy"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// fakeStore implements TaskRecorder and TaskWorkflowStore in memory.
type fakeStore struct {
	tasks   map[string]*models.Task
	nextNum int
}

func newFakeStore(tasks ...*models.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[string]*models.Task), nextNum: 1}
	for _, t := range tasks {
		s.tasks[t.TaskID] = t
	}
	return s
}

func (s *fakeStore) Get(taskID string) (*models.Task, error) {
	if t, ok := s.tasks[taskID]; ok {
		return t, nil
	}
	return nil, &models.TaskNotFoundError{TaskID: taskID}
}

func (s *fakeStore) ListInProgress() ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range s.tasks {
		if t.Status == models.StatusInProgress {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) AddFileModified(taskID, path string) error {
	t, err := s.Get(taskID)
	if err != nil {
		return err
	}
	for _, f := range t.FilesModified {
		if f == path {
			return nil
		}
	}
	t.FilesModified = append(t.FilesModified, path)
	return nil
}

func (s *fakeStore) AppendCommit(taskID string, commit models.Commit) error {
	t, err := s.Get(taskID)
	if err != nil {
		return err
	}
	t.Commits = append(t.Commits, commit)
	return nil
}

func (s *fakeStore) AddAgentUsed(taskID, actor string) error {
	t, err := s.Get(taskID)
	if err != nil {
		return err
	}
	for _, a := range t.AgentsUsed {
		if a == actor {
			return nil
		}
	}
	t.AgentsUsed = append(t.AgentsUsed, actor)
	return nil
}

func (s *fakeStore) Create(storyID string, kind models.TaskKind) (*models.Task, error) {
	id := fmt.Sprintf("TASK-%03d", s.nextNum)
	s.nextNum++
	t := &models.Task{
		TaskID:  id,
		StoryID: storyID,
		Kind:    kind,
		Status:  models.StatusNotStarted,
		Phase:   models.PhaseState{Current: models.PhaseResearch},
	}
	s.tasks[id] = t
	return t, nil
}

func (s *fakeStore) UpdateField(taskID, fieldPath string, value any) error {
	t, err := s.Get(taskID)
	if err != nil {
		return err
	}
	if fieldPath == "branch" {
		t.Branch, _ = value.(string)
	}
	return nil
}

func (s *fakeStore) TransitionPhase(taskID string, phase models.Phase) error {
	t, err := s.Get(taskID)
	if err != nil {
		return err
	}
	t.Phase.Current = phase
	if phase == models.PhaseCompleted {
		t.Status = models.StatusCompleted
	} else {
		t.Status = models.StatusInProgress
	}
	return nil
}

func (s *fakeStore) Archive(taskID string) error {
	_, err := s.Get(taskID)
	return err
}

func (s *fakeStore) Unarchive(taskID string) error {
	_, err := s.Get(taskID)
	return err
}

// fakeGit implements GitBrancher in memory.
type fakeGit struct {
	branch    string
	head      models.Commit
	created   []string
	createErr error
}

func (g *fakeGit) CurrentBranch() (string, error) { return g.branch, nil }

func (g *fakeGit) HeadCommit() (models.Commit, error) {
	if g.head.SHA == "" {
		return models.Commit{}, fmt.Errorf("no commits")
	}
	return g.head, nil
}

func (g *fakeGit) CreateBranch(name string) error {
	if g.createErr != nil {
		return g.createErr
	}
	g.created = append(g.created, name)
	g.branch = name
	return nil
}

// testGate builds a policy gate over a temp repo with one owned directory.
func testGate(t *testing.T, root string) *policy.Gate {
	t.Helper()
	authDir := filepath.Join(root, "internal", "auth")
	if err := os.MkdirAll(authDir, 0o750); err != nil {
		t.Fatal(err)
	}
	doc := "---\nowner: backend-developer\n---\n\n# Auth\n"
	if err := os.WriteFile(filepath.Join(authDir, "OWNERS.md"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	resolver := policy.NewResolver(root, "OWNERS.md", nil)
	return policy.NewGate(root, resolver, models.DefaultSharedZones(), models.UnownedBlock)
}

type engineFixture struct {
	engine *hookEngine
	store  *fakeStore
	ptr    *fakePointer
	git    *fakeGit
	stderr *bytes.Buffer
}

func newEngineFixture(t *testing.T, cfg models.HookConfig, roles []models.RoleRule, tasks ...*models.Task) *engineFixture {
	t.Helper()
	root := t.TempDir()
	store := newFakeStore(tasks...)
	ptr := &fakePointer{}
	git := &fakeGit{}
	binding := NewBranchBinding("TASK", ptr)
	e := NewHookEngine(root, cfg, roles, store, ptr, binding, testGate(t, root), git, nil).(*hookEngine)
	stderr := &bytes.Buffer{}
	e.stderr = stderr
	return &engineFixture{engine: e, store: store, ptr: ptr, git: git, stderr: stderr}
}

func TestPreToolUseBlocksWrongActor(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
		ToolName:  "Edit",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
		Actor:     "frontend-developer",
	})
	if err == nil {
		t.Fatal("expected block for non-owner mutation")
	}
	if !strings.Contains(err.Error(), "BLOCKED") || !strings.Contains(err.Error(), "backend-developer") {
		t.Errorf("error = %v", err)
	}
}

func TestPreToolUseAllowsOwner(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
		ToolName:  "Edit",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
		Actor:     "backend-developer",
	})
	if err != nil {
		t.Errorf("owner mutation blocked: %v", err)
	}
}

func TestPreToolUseUnknownActorNeverBlocks(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
		ToolName:  "Edit",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
	})
	if err != nil {
		t.Errorf("missing actor must not block: %v", err)
	}
}

func TestPreToolUseReadToolsSkipEnforcement(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
		ToolName:  "Read",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
		Actor:     "frontend-developer",
	})
	if err != nil {
		t.Errorf("read must not be gated: %v", err)
	}
}

func TestPreToolUseBranchCreation(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	tests := []struct {
		command string
		blocked bool
	}{
		{"git checkout -b feat/TASK-001-login-US-1", false},
		{"git switch -c fix/TASK-002-crash-US-2", false},
		{"git checkout -b my-cool-branch", true},
		{"git checkout main", false},
		{"ls -la", false},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
				ToolName:  "Bash",
				ToolInput: map[string]any{"command": tt.command},
			})
			if (err != nil) != tt.blocked {
				t.Errorf("command %q: err = %v, blocked want %v", tt.command, err, tt.blocked)
			}
		})
	}
}

func TestPreToolUseDisabledConfig(t *testing.T) {
	cfg := models.DefaultHookConfig()
	cfg.PreToolUse.Enabled = false
	f := newEngineFixture(t, cfg, nil)

	err := f.engine.HandlePreToolUse(hooks.PreToolUseInput{
		ToolName:  "Edit",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
		Actor:     "frontend-developer",
	})
	if err != nil {
		t.Errorf("disabled hook must not block: %v", err)
	}
}

func TestPostToolUseTracksFiles(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	f := newEngineFixture(t, models.DefaultHookConfig(), nil, task)
	f.ptr.val = "TASK-001"

	err := f.engine.HandlePostToolUse(hooks.PostToolUseInput{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "internal/auth/login.go"},
	})
	if err != nil {
		t.Fatalf("HandlePostToolUse: %v", err)
	}
	if len(task.FilesModified) != 1 || task.FilesModified[0] != "internal/auth/login.go" {
		t.Errorf("files_modified = %v", task.FilesModified)
	}
}

func TestPostToolUseNoActiveTask(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandlePostToolUse(hooks.PostToolUseInput{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "main.go"},
	})
	if err != nil {
		t.Errorf("no active task must not error: %v", err)
	}
}

func TestPostToolUseCapturesCommitOnce(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	f := newEngineFixture(t, models.DefaultHookConfig(), nil, task)
	f.ptr.val = "TASK-001"
	f.git.head = models.Commit{SHA: "abc123", Message: "feat: add login"}

	input := hooks.PostToolUseInput{
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": `git commit -m "feat: add login"`},
	}
	if err := f.engine.HandlePostToolUse(input); err != nil {
		t.Fatalf("HandlePostToolUse: %v", err)
	}
	if err := f.engine.HandlePostToolUse(input); err != nil {
		t.Fatalf("HandlePostToolUse (repeat): %v", err)
	}

	if len(task.Commits) != 1 {
		t.Errorf("got %d commits, want 1 (same HEAD must not duplicate)", len(task.Commits))
	}
}

func TestPostToolUseCheckoutSyncsPointer(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	f := newEngineFixture(t, models.DefaultHookConfig(), nil, task)
	f.git.branch = "feat/TASK-001-login-US-1"

	err := f.engine.HandlePostToolUse(hooks.PostToolUseInput{
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "git checkout feat/TASK-001-login-US-1"},
	})
	if err != nil {
		t.Fatalf("HandlePostToolUse: %v", err)
	}
	if f.ptr.val != "TASK-001" {
		t.Errorf("pointer = %q, want TASK-001", f.ptr.val)
	}
}

func TestUserPromptSubmitRequiresTask(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	err := f.engine.HandleUserPromptSubmit(hooks.UserPromptSubmitInput{Prompt: "/task-complete"})
	if err == nil {
		t.Fatal("task command without active task must block")
	}

	f.ptr.val = "TASK-001"
	if err := f.engine.HandleUserPromptSubmit(hooks.UserPromptSubmitInput{Prompt: "/task-complete"}); err != nil {
		t.Errorf("task command with active task blocked: %v", err)
	}
}

func TestUserPromptSubmitStoryValidation(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)
	storiesDir := filepath.Join(f.engine.basePath, "stories")
	if err := os.MkdirAll(storiesDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(storiesDir, "US-1-login.md"), []byte("# US-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.HandleUserPromptSubmit(hooks.UserPromptSubmitInput{Prompt: "implement US-1 please"}); err != nil {
		t.Errorf("documented story blocked: %v", err)
	}
	if err := f.engine.HandleUserPromptSubmit(hooks.UserPromptSubmitInput{Prompt: "implement US-9 please"}); err == nil {
		t.Error("undocumented story must block")
	}
}

func TestUserPromptSubmitNoStoriesDir(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	if err := f.engine.HandleUserPromptSubmit(hooks.UserPromptSubmitInput{Prompt: "implement US-9 please"}); err != nil {
		t.Errorf("story refs without a stories/ dir must pass: %v", err)
	}
}

func TestSessionStartWritesSummary(t *testing.T) {
	task := &models.Task{
		TaskID:  "TASK-001",
		StoryID: "US-1",
		Kind:    models.KindFeat,
		Status:  models.StatusInProgress,
		Branch:  "feat/TASK-001-login-US-1",
		Phase:   models.PhaseState{Current: models.PhaseImplementation},
	}
	other := &models.Task{TaskID: "TASK-002", Status: models.StatusInProgress, Phase: models.PhaseState{Current: models.PhaseResearch}}
	f := newEngineFixture(t, models.DefaultHookConfig(), nil, task, other)
	f.git.branch = "feat/TASK-001-login-US-1"

	var out bytes.Buffer
	if err := f.engine.HandleSessionStart(hooks.SessionStartInput{Source: "startup"}, &out); err != nil {
		t.Fatalf("HandleSessionStart: %v", err)
	}

	got := out.String()
	for _, want := range []string{"TASK-001", "IMPLEMENTATION", "US-1", "/task-implement", "TASK-002"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if f.ptr.val != "TASK-001" {
		t.Errorf("session start did not sync pointer: %q", f.ptr.val)
	}
}

func TestSessionStartSuggestionsFollowPhase(t *testing.T) {
	tests := []struct {
		phase models.Phase
		want  string
	}{
		{models.PhaseResearch, "/task-plan"},
		{models.PhasePlanning, "/task-research or /task-plan"},
		{models.PhaseImplementation, "/task-implement <domain>"},
		{models.PhaseTesting, "/task-test"},
		{models.PhaseValidation, "/task-validate"},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			task := &models.Task{
				TaskID: "TASK-001",
				Status: models.StatusInProgress,
				Branch: "feat/TASK-001-login-US-1",
				Phase:  models.PhaseState{Current: tt.phase},
			}
			f := newEngineFixture(t, models.DefaultHookConfig(), nil, task)
			f.git.branch = task.Branch

			var out bytes.Buffer
			if err := f.engine.HandleSessionStart(hooks.SessionStartInput{}, &out); err != nil {
				t.Fatalf("HandleSessionStart: %v", err)
			}
			if !strings.Contains(out.String(), "Suggested: "+tt.want) {
				t.Errorf("phase %s: summary missing %q:\n%s", tt.phase, tt.want, out.String())
			}
		})
	}
}

// The branch can point at a task that has no recorded state yet; the session
// summary warns instead of failing or clearing the pointer.
func TestSessionStartWarnsOnMissingTaskState(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)
	f.git.branch = "feat/TASK-777-ghost-US-1"

	var out bytes.Buffer
	if err := f.engine.HandleSessionStart(hooks.SessionStartInput{}, &out); err != nil {
		t.Fatalf("HandleSessionStart: %v", err)
	}
	if !strings.Contains(out.String(), "TASK-777") || !strings.Contains(out.String(), "no recorded state") {
		t.Errorf("summary = %q, want missing-state warning for TASK-777", out.String())
	}
	if f.ptr.val != "TASK-777" {
		t.Errorf("pointer = %q, want TASK-777 (missing state must not clear it)", f.ptr.val)
	}
}

func TestSessionStartNoActiveTask(t *testing.T) {
	f := newEngineFixture(t, models.DefaultHookConfig(), nil)

	var out bytes.Buffer
	if err := f.engine.HandleSessionStart(hooks.SessionStartInput{}, &out); err != nil {
		t.Fatalf("HandleSessionStart: %v", err)
	}
	if !strings.Contains(out.String(), "No active task") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestSubagentStopRecordsAgentAndWarns(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	roles := []models.RoleRule{
		{Actor: "backend-developer", Domain: "internal/", RequireCommits: true, RequireTests: true},
	}
	f := newEngineFixture(t, models.DefaultHookConfig(), roles, task)
	f.ptr.val = "TASK-001"

	err := f.engine.HandleSubagentStop(hooks.SubagentStopInput{SubagentType: "backend-developer"})
	if err != nil {
		t.Fatalf("HandleSubagentStop must not block: %v", err)
	}
	if len(task.AgentsUsed) != 1 || task.AgentsUsed[0] != "backend-developer" {
		t.Errorf("agents_used = %v", task.AgentsUsed)
	}
	warnings := f.stderr.String()
	if !strings.Contains(warnings, "no commits") || !strings.Contains(warnings, "no test results") {
		t.Errorf("expected deliverable warnings, got: %q", warnings)
	}
}

func TestSubagentStopWarnsOutsideDomain(t *testing.T) {
	roles := []models.RoleRule{
		{Actor: "frontend-developer", Domain: "web/"},
	}

	t.Run("all files outside domain", func(t *testing.T) {
		task := &models.Task{
			TaskID:        "TASK-001",
			Status:        models.StatusInProgress,
			FilesModified: []string{"internal/auth/login.go", "docs/notes.md"},
		}
		f := newEngineFixture(t, models.DefaultHookConfig(), roles, task)
		f.ptr.val = "TASK-001"

		if err := f.engine.HandleSubagentStop(hooks.SubagentStopInput{SubagentType: "frontend-developer"}); err != nil {
			t.Fatalf("HandleSubagentStop: %v", err)
		}
		if !strings.Contains(f.stderr.String(), "without touching its domain web/") {
			t.Errorf("expected domain warning, got: %q", f.stderr.String())
		}
	})

	t.Run("one file inside domain", func(t *testing.T) {
		task := &models.Task{
			TaskID:        "TASK-001",
			Status:        models.StatusInProgress,
			FilesModified: []string{"internal/auth/login.go", "web/login.tsx"},
		}
		f := newEngineFixture(t, models.DefaultHookConfig(), roles, task)
		f.ptr.val = "TASK-001"

		if err := f.engine.HandleSubagentStop(hooks.SubagentStopInput{SubagentType: "frontend-developer"}); err != nil {
			t.Fatalf("HandleSubagentStop: %v", err)
		}
		if strings.Contains(f.stderr.String(), "domain") {
			t.Errorf("unexpected domain warning: %q", f.stderr.String())
		}
	})

	t.Run("no files modified", func(t *testing.T) {
		task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
		f := newEngineFixture(t, models.DefaultHookConfig(), roles, task)
		f.ptr.val = "TASK-001"

		if err := f.engine.HandleSubagentStop(hooks.SubagentStopInput{SubagentType: "frontend-developer"}); err != nil {
			t.Fatalf("HandleSubagentStop: %v", err)
		}
		if strings.Contains(f.stderr.String(), "domain") {
			t.Errorf("unexpected domain warning: %q", f.stderr.String())
		}
	})
}

func TestSubagentStopNoRuleNoWarnings(t *testing.T) {
	task := &models.Task{TaskID: "TASK-001", Status: models.StatusInProgress}
	f := newEngineFixture(t, models.DefaultHookConfig(), nil, task)
	f.ptr.val = "TASK-001"

	if err := f.engine.HandleSubagentStop(hooks.SubagentStopInput{SubagentType: "reviewer"}); err != nil {
		t.Fatalf("HandleSubagentStop: %v", err)
	}
	if f.stderr.Len() != 0 {
		t.Errorf("unexpected warnings: %q", f.stderr.String())
	}
}
