package models

import "time"

// TaskKind represents the type of work a task involves. The vocabulary
// doubles as the branch name prefix.
type TaskKind string

const (
	KindFeat     TaskKind = "feat"
	KindFix      TaskKind = "fix"
	KindRefactor TaskKind = "refactor"
	KindTest     TaskKind = "test"
	KindDocs     TaskKind = "docs"
	KindChore    TaskKind = "chore"
)

// ValidKinds lists every accepted task kind in branch-prefix order.
var ValidKinds = []TaskKind{KindFeat, KindFix, KindRefactor, KindTest, KindDocs, KindChore}

// IsValidKind reports whether k is one of the accepted task kinds.
func IsValidKind(k TaskKind) bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}

// TaskStatus represents the coarse lifecycle state of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Phase is one stage in a task's fixed lifecycle. Phases are ordered;
// exactly one phase is current at any time.
type Phase string

const (
	PhaseResearch       Phase = "RESEARCH"
	PhasePlanning       Phase = "PLANNING"
	PhaseImplementation Phase = "IMPLEMENTATION"
	PhaseTesting        Phase = "TESTING"
	PhaseValidation     Phase = "VALIDATION"
	PhaseCompleted      Phase = "COMPLETED"
)

// PhaseOrder lists all phases in lifecycle order.
var PhaseOrder = []Phase{
	PhaseResearch,
	PhasePlanning,
	PhaseImplementation,
	PhaseTesting,
	PhaseValidation,
	PhaseCompleted,
}

// IsValidPhase reports whether p is a known lifecycle phase.
func IsValidPhase(p Phase) bool {
	for _, v := range PhaseOrder {
		if p == v {
			return true
		}
	}
	return false
}

// PhaseEntry is one append-only record in a task's phase history.
// CompletedAt is nil while the phase is still open.
type PhaseEntry struct {
	Phase           Phase      `json:"phase"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationMinutes float64    `json:"duration_minutes,omitempty"`
}

// PhaseState holds the current phase and the full transition history.
type PhaseState struct {
	Current Phase        `json:"current"`
	History []PhaseEntry `json:"history"`
}

// Commit is one version-control commit attributed to a task.
type Commit struct {
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	FilesChanged int       `json:"files_changed"`
}

// TestResults holds externally reported test and coverage signals.
// CoverageBaseline is set at task creation and changes only through an
// explicit operation, never as a side effect of a test run.
type TestResults struct {
	Total              int     `json:"total"`
	Passing            bool    `json:"passing"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	CoverageBaseline   float64 `json:"coverage_baseline"`
}

// CheckStatus is the tri-state result of a single quality check.
type CheckStatus string

const (
	CheckNotRun CheckStatus = "not_run"
	CheckPassed CheckStatus = "passed"
	CheckFailed CheckStatus = "failed"
)

// CheckResult is the recorded outcome of one externally run quality check.
type CheckResult struct {
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// QualityGates groups the per-check results that feed the composite verdict.
type QualityGates struct {
	Lint               CheckResult `json:"lint"`
	TypeCheck          CheckResult `json:"type_check"`
	Security           CheckResult `json:"security"`
	AcceptanceCriteria CheckResult `json:"acceptance_criteria"`
}

// Dependencies records inter-task blocking relations.
type Dependencies struct {
	BlockedBy []string `json:"blocked_by"`
	Blocks    []string `json:"blocks"`
}

// Timestamps records the coarse lifecycle instants of a task.
type Timestamps struct {
	Created      time.Time  `json:"created"`
	Started      *time.Time `json:"started"`
	LastAccessed time.Time  `json:"last_accessed"`
	Completed    *time.Time `json:"completed"`
}

// Task is the durable state record for one unit of development work,
// bound 1:1 to a version-control branch. It is persisted as a single JSON
// document written with atomic-replace semantics.
type Task struct {
	TaskID        string       `json:"task_id"`
	StoryID       string       `json:"story_id"`
	Kind          TaskKind     `json:"kind"`
	Branch        string       `json:"branch"`
	Status        TaskStatus   `json:"status"`
	Phase         PhaseState   `json:"phase"`
	Commits       []Commit     `json:"commits"`
	FilesModified []string     `json:"files_modified"`
	Tests         TestResults  `json:"tests"`
	QualityGates  QualityGates `json:"quality_gates"`
	Dependencies  Dependencies `json:"dependencies"`
	AgentsUsed    []string     `json:"agents_used"`
	Timestamps    Timestamps   `json:"timestamps"`

	// Revision counts writes to this record. It is an extension point for
	// optimistic concurrency and is never compared today.
	Revision int `json:"revision"`
}
