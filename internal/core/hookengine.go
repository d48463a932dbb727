package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sdlcguard/sdlcguard/internal/hooks"
	"github.com/sdlcguard/sdlcguard/internal/observability"
	"github.com/sdlcguard/sdlcguard/internal/policy"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// TaskRecorder is the slice of the task store the hook engine needs.
type TaskRecorder interface {
	Get(taskID string) (*models.Task, error)
	ListInProgress() ([]*models.Task, error)
	AddFileModified(taskID, path string) error
	AppendCommit(taskID string, commit models.Commit) error
	AddAgentUsed(taskID, actor string) error
}

// Authorizer decides whether an actor may mutate a path.
type Authorizer interface {
	Authorize(actor, path string, op policy.Operation) policy.Decision
}

// GitInfo is the slice of repository introspection the hook engine needs.
type GitInfo interface {
	CurrentBranch() (string, error)
	HeadCommit() (models.Commit, error)
}

// HookEngine processes agent lifecycle events. Pre-mutation handlers return
// an error to block; post-event handlers are non-blocking and always return
// nil once the payload is understood.
type HookEngine interface {
	// HandleSessionStart writes a context summary for the new session.
	HandleSessionStart(input hooks.SessionStartInput, w io.Writer) error

	// HandleUserPromptSubmit validates prompt prerequisites. Returns error to block.
	HandleUserPromptSubmit(input hooks.UserPromptSubmitInput) error

	// HandlePreToolUse validates before a tool executes. Returns error to block.
	HandlePreToolUse(input hooks.PreToolUseInput) error

	// HandlePostToolUse records mutation results. Non-blocking.
	HandlePostToolUse(input hooks.PostToolUseInput) error

	// HandleSubagentStop runs deliverable checks when an actor reports done.
	// Warn-only, non-blocking.
	HandleSubagentStop(input hooks.SubagentStopInput) error
}

type hookEngine struct {
	basePath string
	config   models.HookConfig
	roles    []models.RoleRule
	tasks    TaskRecorder
	pointer  CurrentPointer
	binding  *BranchBinding
	gate     Authorizer
	git      GitInfo
	events   observability.EventLog
	stderr   io.Writer
}

// NewHookEngine creates a HookEngine. git and events may be nil (commit
// capture and audit events disabled).
func NewHookEngine(
	basePath string,
	config models.HookConfig,
	roles []models.RoleRule,
	tasks TaskRecorder,
	pointer CurrentPointer,
	binding *BranchBinding,
	gate Authorizer,
	git GitInfo,
	events observability.EventLog,
) HookEngine {
	return &hookEngine{
		basePath: basePath,
		config:   config,
		roles:    roles,
		tasks:    tasks,
		pointer:  pointer,
		binding:  binding,
		gate:     gate,
		git:      git,
		events:   events,
		stderr:   os.Stderr,
	}
}

// HandleSessionStart syncs the current-task pointer with the checked-out
// branch and writes a context summary. Never blocks.
func (e *hookEngine) HandleSessionStart(input hooks.SessionStartInput, w io.Writer) error {
	if !e.config.Enabled || !e.config.SessionStart.Enabled {
		return nil
	}

	current := e.syncPointer()

	if current == models.NoCurrentTask {
		fmt.Fprintln(w, "No active task. Create one with 'sdlcguard task new' or switch to a task branch.")
	} else if task, err := e.tasks.Get(current); err != nil {
		// The branch pointed here but the task has no recorded state.
		fmt.Fprintf(w, "Warning: current task %s has no recorded state. Run 'sdlcguard task new' to create it.\n", current)
		e.logEvent("WARN", "task.state_missing", "current task has no recorded state", map[string]any{
			"task_id": current,
		})
	} else {
		fmt.Fprintf(w, "Active task: %s (%s) phase=%s story=%s branch=%s\n",
			task.TaskID, task.Kind, task.Phase.Current, task.StoryID, task.Branch)
		if e.config.SessionStart.ShowSuggestions {
			if s, ok := phaseSuggestions[task.Phase.Current]; ok {
				fmt.Fprintf(w, "Suggested: %s\n", s)
			} else if task.Status == models.StatusInProgress {
				fmt.Fprintln(w, "Suggested: continue working, or /task-status for details")
			}
		}
	}

	if e.config.SessionStart.ShowParallel {
		e.writeParallel(w, current)
	}
	return nil
}

// syncPointer re-derives the current-task pointer from the checked-out
// branch. Returns the resulting pointer value.
func (e *hookEngine) syncPointer() string {
	if e.git != nil && e.binding != nil {
		if branch, err := e.git.CurrentBranch(); err == nil && branch != "" {
			if current, err := e.binding.OnBranchChanged(branch); err == nil {
				return current
			}
		}
	}
	current, err := e.pointer.Current()
	if err != nil {
		return models.NoCurrentTask
	}
	return current
}

func (e *hookEngine) writeParallel(w io.Writer, current string) {
	inProgress, err := e.tasks.ListInProgress()
	if err != nil {
		return
	}
	var others []string
	for _, t := range inProgress {
		if t.TaskID != current {
			others = append(others, fmt.Sprintf("%s (%s)", t.TaskID, t.Phase.Current))
		}
	}
	if len(others) > 0 {
		fmt.Fprintf(w, "Other tasks in progress: %s\n", strings.Join(others, ", "))
	}
}

// taskCommandPattern matches prompts invoking task workflow commands that
// operate on the active task.
var taskCommandPattern = regexp.MustCompile(`^/task-(?:status|update|phase|complete|resume)\b`)

// storyRefPattern matches story references inside a prompt.
var storyRefPattern = regexp.MustCompile(`\bUS-\d+[A-Z]?\b`)

// HandleUserPromptSubmit blocks task-scoped commands when no task is active
// and story references that name a story with no document.
func (e *hookEngine) HandleUserPromptSubmit(input hooks.UserPromptSubmitInput) error {
	if !e.config.Enabled || !e.config.UserPromptSubmit.Enabled {
		return nil
	}

	if e.config.UserPromptSubmit.RequireTask && taskCommandPattern.MatchString(input.Prompt) {
		current, err := e.pointer.Current()
		if err == nil && current == models.NoCurrentTask {
			return fmt.Errorf("BLOCKED: no active task. Create one with 'sdlcguard task new' or switch to a task branch first")
		}
	}

	if e.config.UserPromptSubmit.ValidateStory {
		for _, storyID := range storyRefPattern.FindAllString(input.Prompt, -1) {
			if !e.storyExists(storyID) {
				return fmt.Errorf("BLOCKED: story %s has no document under stories/. Write the story before referencing it", storyID)
			}
		}
	}

	return nil
}

// storyExists reports whether a story document exists for storyID. Missing
// stories/ directory means story tracking is not in use, so every reference
// is accepted.
func (e *hookEngine) storyExists(storyID string) bool {
	dir := filepath.Join(e.basePath, "stories")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == storyID+".md" || strings.HasPrefix(name, storyID+"-") {
			return true
		}
	}
	return false
}

// mutatingTools are the tool names whose file_path argument is written.
var mutatingTools = map[string]bool{
	"Edit":      true,
	"Write":     true,
	"MultiEdit": true,
}

// branchCreatePattern extracts the branch name from a branch-creating git
// command.
var branchCreatePattern = regexp.MustCompile(`git\s+(?:checkout\s+-b|switch\s+-c|branch)\s+(\S+)`)

// HandlePreToolUse enforces ownership on file mutations and the naming
// convention on branch creation. Returns error with exit code 2 semantics
// to block the tool use.
func (e *hookEngine) HandlePreToolUse(input hooks.PreToolUseInput) error {
	if !e.config.Enabled || !e.config.PreToolUse.Enabled {
		return nil
	}

	if e.config.PreToolUse.EnforceOwnership && mutatingTools[input.ToolName] {
		if err := e.enforceOwnership(input); err != nil {
			return err
		}
	}

	if e.config.PreToolUse.ValidateBranches && input.ToolName == "Bash" {
		if err := e.validateBranchCommand(input.Command()); err != nil {
			return err
		}
	}

	return nil
}

// enforceOwnership blocks only on a positively determined mismatch: an
// unknown actor or missing file path never blocks.
func (e *hookEngine) enforceOwnership(input hooks.PreToolUseInput) error {
	fp := input.FilePath()
	if fp == "" || input.Actor == "" || e.gate == nil {
		return nil
	}

	decision := e.gate.Authorize(input.Actor, fp, policy.OpMutate)
	if decision.Allowed {
		return nil
	}

	e.logEvent("ERROR", "policy.denied", decision.Reason, map[string]any{
		"actor": input.Actor,
		"path":  fp,
	})
	msg := "BLOCKED: " + decision.Reason
	if len(decision.RequiredOwners) > 0 {
		msg += fmt.Sprintf(". Delegate to: %s", strings.Join(decision.RequiredOwners, ", "))
	}
	return fmt.Errorf("%s", msg)
}

func (e *hookEngine) validateBranchCommand(command string) error {
	if command == "" || e.binding == nil {
		return nil
	}
	m := branchCreatePattern.FindStringSubmatch(command)
	if m == nil {
		return nil
	}
	branch := m[1]
	if strings.HasPrefix(branch, "-") {
		return nil // a flag, not a branch name
	}
	if err := e.binding.Validate(branch); err != nil {
		return fmt.Errorf("BLOCKED: %s", err)
	}
	return nil
}

// HandlePostToolUse records mutation results into the active task and keeps
// the branch pointer in step with checkouts. Always returns nil.
func (e *hookEngine) HandlePostToolUse(input hooks.PostToolUseInput) error {
	if !e.config.Enabled || !e.config.PostToolUse.Enabled {
		return nil
	}

	if input.ToolName == "Bash" {
		e.afterBashCommand(input.Command())
		return nil
	}

	if e.config.PostToolUse.TrackFiles && mutatingTools[input.ToolName] {
		if fp := input.FilePath(); fp != "" {
			if current := e.currentTask(); current != "" {
				_ = e.tasks.AddFileModified(current, e.relPath(fp))
			}
		}
	}

	return nil
}

// afterBashCommand reacts to branch switches and commits. Failures are
// swallowed; post hooks never block.
func (e *hookEngine) afterBashCommand(command string) {
	if command == "" {
		return
	}

	if strings.Contains(command, "git checkout") || strings.Contains(command, "git switch") {
		if e.git != nil && e.binding != nil {
			if branch, err := e.git.CurrentBranch(); err == nil && branch != "" {
				_, _ = e.binding.OnBranchChanged(branch)
			}
		}
	}

	if e.config.PostToolUse.TrackCommits && strings.Contains(command, "git commit") {
		e.captureHeadCommit()
	}
}

// captureHeadCommit appends the HEAD commit to the active task, skipping
// SHAs already recorded.
func (e *hookEngine) captureHeadCommit() {
	if e.git == nil {
		return
	}
	current := e.currentTask()
	if current == "" {
		return
	}
	commit, err := e.git.HeadCommit()
	if err != nil {
		return
	}
	task, err := e.tasks.Get(current)
	if err != nil {
		return
	}
	for _, c := range task.Commits {
		if c.SHA == commit.SHA {
			return
		}
	}
	if err := e.tasks.AppendCommit(current, commit); err == nil {
		e.logEvent("INFO", "task.commit_recorded", commit.Message, map[string]any{
			"task_id": current,
			"sha":     commit.SHA,
		})
	}
}

// HandleSubagentStop records the actor and warns about missing deliverables.
// Warn-only: always returns nil.
func (e *hookEngine) HandleSubagentStop(input hooks.SubagentStopInput) error {
	if !e.config.Enabled || !e.config.SubagentStop.Enabled {
		return nil
	}

	actor := input.SubagentType
	if actor == "" {
		return nil
	}

	current := e.currentTask()
	if current == "" {
		return nil
	}

	if e.config.SubagentStop.TrackAgents {
		_ = e.tasks.AddAgentUsed(current, actor)
	}

	if e.config.SubagentStop.ValidateDeliverables {
		e.warnMissingDeliverables(current, actor)
	}

	return nil
}

func (e *hookEngine) warnMissingDeliverables(taskID, actor string) {
	var rule *models.RoleRule
	for i := range e.roles {
		if e.roles[i].Actor == actor {
			rule = &e.roles[i]
			break
		}
	}
	if rule == nil {
		return
	}

	task, err := e.tasks.Get(taskID)
	if err != nil {
		return
	}

	if rule.RequireCommits && len(task.Commits) == 0 {
		fmt.Fprintf(e.stderr, "Warning: %s finished on %s with no commits recorded\n", actor, taskID)
	}
	if rule.Domain != "" && len(task.FilesModified) > 0 && !anyUnderDomain(task.FilesModified, rule.Domain) {
		fmt.Fprintf(e.stderr, "Warning: %s finished on %s without touching its domain %s\n", actor, taskID, rule.Domain)
	}
	if rule.RequireTests && task.Tests.Total == 0 {
		fmt.Fprintf(e.stderr, "Warning: %s finished on %s with no test results recorded\n", actor, taskID)
	}
}

// anyUnderDomain reports whether at least one modified path sits under the
// actor's domain directory. Paths are repo-relative slash paths (see relPath).
func anyUnderDomain(paths []string, domain string) bool {
	prefix := strings.TrimSuffix(filepath.ToSlash(domain), "/") + "/"
	for _, p := range paths {
		if p == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// --- Helper methods ---

// currentTask returns the active task id, or "" when none is active.
func (e *hookEngine) currentTask() string {
	current, err := e.pointer.Current()
	if err != nil || current == models.NoCurrentTask || current == "" {
		return ""
	}
	return current
}

// relPath rewrites an absolute path under basePath to a repo-relative one,
// so task records stay portable across checkouts.
func (e *hookEngine) relPath(fp string) string {
	if !filepath.IsAbs(fp) {
		return filepath.ToSlash(fp)
	}
	rel, err := filepath.Rel(e.basePath, fp)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(fp)
	}
	return filepath.ToSlash(rel)
}

func (e *hookEngine) logEvent(level, eventType, msg string, data map[string]any) {
	if e.events == nil {
		return
	}
	taskID, _ := data["task_id"].(string)
	_ = e.events.Write(observability.Event{
		Level:   level,
		Type:    eventType,
		TaskID:  taskID,
		Message: msg,
		Data:    data,
	})
}

// phaseSuggestions maps each working phase to the command that moves the
// task along.
var phaseSuggestions = map[models.Phase]string{
	models.PhaseResearch:       "/task-plan",
	models.PhasePlanning:       "/task-research or /task-plan",
	models.PhaseImplementation: "/task-implement <domain>",
	models.PhaseTesting:        "/task-test",
	models.PhaseValidation:     "/task-validate",
}
