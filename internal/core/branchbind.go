package core

import (
	"fmt"
	"regexp"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// CurrentPointer records which task is active.
type CurrentPointer interface {
	Set(taskID string) error
	Current() (string, error)
}

// BranchTaskRef is the task reference encoded in a work branch name.
type BranchTaskRef struct {
	Kind        models.TaskKind
	TaskID      string
	StoryID     string
	Description string
}

// mainBranches are integration branches exempt from the naming convention.
var mainBranches = map[string]bool{
	"main":   true,
	"master": true,
}

// BranchBinding parses work branch names and keeps the current-task pointer
// in step with the checked-out branch.
type BranchBinding struct {
	re       *regexp.Regexp
	idPrefix string
	pointer  CurrentPointer
}

// NewBranchBinding compiles the branch naming convention for the given task
// ID prefix. Branch names look like feat/TASK-042-login-form-US-3A: a kind
// segment, the task ID, an optional description, and the story reference.
func NewBranchBinding(idPrefix string, pointer CurrentPointer) *BranchBinding {
	if idPrefix == "" {
		idPrefix = "TASK"
	}
	re := regexp.MustCompile(
		`^(feat|fix|refactor|test|docs|chore)/(` +
			regexp.QuoteMeta(idPrefix) +
			`-\d+)(-[a-z0-9-]+)?-(US-\d+[A-Z]?)$`,
	)
	return &BranchBinding{re: re, idPrefix: idPrefix, pointer: pointer}
}

// Parse extracts the task reference from a branch name. The second return
// is false when the branch does not follow the naming convention.
func (b *BranchBinding) Parse(branch string) (BranchTaskRef, bool) {
	m := b.re.FindStringSubmatch(branch)
	if m == nil {
		return BranchTaskRef{}, false
	}
	ref := BranchTaskRef{
		Kind:    models.TaskKind(m[1]),
		TaskID:  m[2],
		StoryID: m[4],
	}
	if m[3] != "" {
		ref.Description = m[3][1:] // drop the leading dash
	}
	return ref, true
}

// Validate reports whether a branch name is acceptable to create or switch
// to: either an integration branch or a well-formed work branch.
func (b *BranchBinding) Validate(branch string) error {
	if mainBranches[branch] {
		return nil
	}
	if _, ok := b.Parse(branch); ok {
		return nil
	}
	return fmt.Errorf(
		"branch %q does not follow the convention kind/%s-NNN-description-US-N (kinds: feat, fix, refactor, test, docs, chore)",
		branch, b.idPrefix,
	)
}

// OnBranchChanged updates the current-task pointer for the newly checked-out
// branch. A work branch sets the pointer to the task ID it encodes; any other
// branch clears it. This rewrites only the pointer file and never touches the
// task store: whether the task actually has recorded state is the concern of
// whoever reads it next, which keeps branch switches cheap. The resulting
// pointer value is returned.
func (b *BranchBinding) OnBranchChanged(branch string) (string, error) {
	if ref, ok := b.Parse(branch); ok {
		if err := b.pointer.Set(ref.TaskID); err != nil {
			return "", fmt.Errorf("setting current task pointer: %w", err)
		}
		return ref.TaskID, nil
	}

	if err := b.pointer.Set(models.NoCurrentTask); err != nil {
		return "", fmt.Errorf("clearing current task pointer: %w", err)
	}
	return models.NoCurrentTask, nil
}
