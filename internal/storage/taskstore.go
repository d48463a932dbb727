// Package storage provides the durable, file-backed stores for task state
// and the branch-derived current-task pointer. Every write of a task record
// goes through an atomic temp-file-and-rename replace, so readers never
// observe a partially written record.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

const (
	stateFileName = "state.json"
	archivedDir   = "_archived"
)

// TaskFilter specifies criteria for listing tasks. Zero fields match
// everything; set fields use AND logic.
type TaskFilter struct {
	Status  models.TaskStatus
	Phase   models.Phase
	StoryID string
	Kind    models.TaskKind
}

// TaskStore defines durable CRUD over per-task state records.
type TaskStore interface {
	Create(storyID string, kind models.TaskKind) (*models.Task, error)
	Get(taskID string) (*models.Task, error)
	List(filter TaskFilter) ([]*models.Task, error)
	UpdateField(taskID string, fieldPath string, value any) error
	TransitionPhase(taskID string, phase models.Phase) error
	AppendCommit(taskID string, commit models.Commit) error
	AddFileModified(taskID string, path string) error
	AddAgentUsed(taskID string, actor string) error
	SetCoverageBaseline(taskID string, baseline float64) error
	Archive(taskID string) error
	Unarchive(taskID string) error
}

// fileTaskStore implements TaskStore with one JSON document per task under
// <base>/.sdlc/tasks/<task-id>/state.json. Archived tasks move to the
// _archived namespace and are never deleted.
type fileTaskStore struct {
	basePath        string
	idPrefix        string
	idPadWidth      int
	defaultBaseline float64
	now             func() time.Time
}

// NewTaskStore creates a TaskStore rooted at basePath. idPrefix and
// idPadWidth control task id formatting (e.g. TASK, 3 → TASK-001).
// defaultBaseline is the coverage baseline stamped onto new tasks.
func NewTaskStore(basePath, idPrefix string, idPadWidth int, defaultBaseline float64) TaskStore {
	if idPrefix == "" {
		idPrefix = "TASK"
	}
	if idPadWidth <= 0 {
		idPadWidth = 3
	}
	return &fileTaskStore{
		basePath:        basePath,
		idPrefix:        idPrefix,
		idPadWidth:      idPadWidth,
		defaultBaseline: defaultBaseline,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *fileTaskStore) tasksDir() string {
	return filepath.Join(s.basePath, ".sdlc", "tasks")
}

func (s *fileTaskStore) taskDir(taskID string) string {
	return filepath.Join(s.tasksDir(), taskID)
}

func (s *fileTaskStore) archiveDir(taskID string) string {
	return filepath.Join(s.tasksDir(), archivedDir, taskID)
}

// statePath returns the state file path for taskID, preferring the active
// namespace and falling back to the archive for reads.
func (s *fileTaskStore) statePath(taskID string) (string, error) {
	active := filepath.Join(s.taskDir(taskID), stateFileName)
	if _, err := os.Stat(active); err == nil {
		return active, nil
	}
	archived := filepath.Join(s.archiveDir(taskID), stateFileName)
	if _, err := os.Stat(archived); err == nil {
		return archived, nil
	}
	return "", &models.TaskNotFoundError{TaskID: taskID}
}

// Create allocates the next sequential task id and writes the initial
// record. Id allocation scans existing ids and takes max+1; task creation
// is a rare, effectively serialized operation, so a scan is acceptable.
func (s *fileTaskStore) Create(storyID string, kind models.TaskKind) (*models.Task, error) {
	if !models.IsValidKind(kind) {
		return nil, fmt.Errorf("creating task: %w: unknown kind %q", models.ErrInvalidState, kind)
	}

	next, err := s.nextTaskNumber()
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	taskID := fmt.Sprintf("%s-%0*d", s.idPrefix, s.idPadWidth, next)

	now := s.now()
	task := &models.Task{
		TaskID:  taskID,
		StoryID: storyID,
		Kind:    kind,
		Status:  models.StatusNotStarted,
		Phase: models.PhaseState{
			Current: models.PhaseResearch,
			History: []models.PhaseEntry{},
		},
		Commits:       []models.Commit{},
		FilesModified: []string{},
		Tests: models.TestResults{
			CoverageBaseline: s.defaultBaseline,
		},
		QualityGates: models.QualityGates{
			Lint:               models.CheckResult{Status: models.CheckNotRun},
			TypeCheck:          models.CheckResult{Status: models.CheckNotRun},
			Security:           models.CheckResult{Status: models.CheckNotRun},
			AcceptanceCriteria: models.CheckResult{Status: models.CheckNotRun},
		},
		Dependencies: models.Dependencies{BlockedBy: []string{}, Blocks: []string{}},
		AgentsUsed:   []string{},
		Timestamps: models.Timestamps{
			Created:      now,
			LastAccessed: now,
		},
		Revision: 0,
	}

	dir := s.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating task directory: %w", err)
	}

	if err := s.writeTask(filepath.Join(dir, stateFileName), task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

var taskDirPattern = regexp.MustCompile(`^[A-Z0-9]+-(\d+)$`)

// nextTaskNumber scans both namespaces for the highest numeric suffix.
func (s *fileTaskStore) nextTaskNumber() (int, error) {
	max := 0
	for _, dir := range []string{s.tasksDir(), filepath.Join(s.tasksDir(), archivedDir)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("scanning task ids: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			m := taskDirPattern.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if n > max {
				max = n
			}
		}
	}
	return max + 1, nil
}

func (s *fileTaskStore) Get(taskID string) (*models.Task, error) {
	path, err := s.statePath(taskID)
	if err != nil {
		return nil, err
	}
	return readTask(path)
}

func readTask(path string) (*models.Task, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path derived from store layout
	if err != nil {
		return nil, fmt.Errorf("reading task state: %w", err)
	}
	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parsing task state %s: %w", path, err)
	}
	return &task, nil
}

func (s *fileTaskStore) List(filter TaskFilter) ([]*models.Task, error) {
	entries, err := os.ReadDir(s.tasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var tasks []*models.Task
	for _, e := range entries {
		if !e.IsDir() || e.Name() == archivedDir {
			continue
		}
		statePath := filepath.Join(s.tasksDir(), e.Name(), stateFileName)
		task, err := readTask(statePath)
		if err != nil {
			continue // skip unreadable records
		}
		if matchesTaskFilter(task, filter) {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].TaskID < tasks[j].TaskID
	})
	return tasks, nil
}

func matchesTaskFilter(task *models.Task, filter TaskFilter) bool {
	if filter.Status != "" && task.Status != filter.Status {
		return false
	}
	if filter.Phase != "" && task.Phase.Current != filter.Phase {
		return false
	}
	if filter.StoryID != "" && task.StoryID != filter.StoryID {
		return false
	}
	if filter.Kind != "" && task.Kind != filter.Kind {
		return false
	}
	return true
}

// UpdateField sets a dotted field path (e.g. "tests.passing" or
// "phase.current") in the task record. The record is round-tripped through
// a generic JSON map so arbitrary nested paths work; the result must still
// decode into a structurally valid task or the write is rejected with
// models.ErrInvalidState and the prior record is preserved.
func (s *fileTaskStore) UpdateField(taskID string, fieldPath string, value any) error {
	return s.mutate(taskID, func(raw map[string]any) error {
		keys := strings.Split(fieldPath, ".")
		target := raw
		for _, key := range keys[:len(keys)-1] {
			next, ok := target[key].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[key] = next
			}
			target = next
		}
		target[keys[len(keys)-1]] = value
		return nil
	})
}

// TransitionPhase closes the open phase history entry, opens an entry for
// the target phase, and updates the current phase in a single atomic write.
func (s *fileTaskStore) TransitionPhase(taskID string, phase models.Phase) error {
	if !models.IsValidPhase(phase) {
		return fmt.Errorf("transitioning phase: %w: unknown phase %q", models.ErrInvalidState, phase)
	}

	return s.mutateTask(taskID, func(task *models.Task) error {
		now := s.now()

		// Close the currently open history entry, if any.
		for i := len(task.Phase.History) - 1; i >= 0; i-- {
			entry := &task.Phase.History[i]
			if entry.CompletedAt == nil {
				completed := now
				entry.CompletedAt = &completed
				entry.DurationMinutes = roundMinutes(completed.Sub(entry.StartedAt))
				break
			}
		}

		task.Phase.History = append(task.Phase.History, models.PhaseEntry{
			Phase:     phase,
			StartedAt: now,
		})
		task.Phase.Current = phase

		if task.Timestamps.Started == nil {
			started := now
			task.Timestamps.Started = &started
			task.Status = models.StatusInProgress
		}
		if phase == models.PhaseCompleted {
			completed := now
			task.Timestamps.Completed = &completed
			task.Status = models.StatusCompleted
		}
		return nil
	})
}

// roundMinutes converts a duration to minutes with two decimal places.
func roundMinutes(d time.Duration) float64 {
	minutes := d.Minutes()
	return float64(int(minutes*100+0.5)) / 100
}

// AppendCommit appends a commit record. The store does not deduplicate;
// duplicate-entry prevention is the caller's responsibility.
func (s *fileTaskStore) AppendCommit(taskID string, commit models.Commit) error {
	return s.mutateTask(taskID, func(task *models.Task) error {
		task.Commits = append(task.Commits, commit)
		return nil
	})
}

// AddFileModified records path into the task's modified-file set.
// Duplicate paths are ignored.
func (s *fileTaskStore) AddFileModified(taskID string, path string) error {
	return s.mutateTask(taskID, func(task *models.Task) error {
		for _, f := range task.FilesModified {
			if f == path {
				return nil
			}
		}
		task.FilesModified = append(task.FilesModified, path)
		return nil
	})
}

// AddAgentUsed records an actor identity into the task's agent set.
func (s *fileTaskStore) AddAgentUsed(taskID string, actor string) error {
	return s.mutateTask(taskID, func(task *models.Task) error {
		for _, a := range task.AgentsUsed {
			if a == actor {
				return nil
			}
		}
		task.AgentsUsed = append(task.AgentsUsed, actor)
		return nil
	})
}

// SetCoverageBaseline is the explicit operation for changing a task's
// coverage baseline.
func (s *fileTaskStore) SetCoverageBaseline(taskID string, baseline float64) error {
	if baseline < 0 || baseline > 100 {
		return fmt.Errorf("setting coverage baseline: %w: %v is not a percentage", models.ErrInvalidState, baseline)
	}
	return s.mutateTask(taskID, func(task *models.Task) error {
		task.Tests.CoverageBaseline = baseline
		return nil
	})
}

// Archive moves the task directory into the _archived namespace. Archived
// tasks remain readable; they are never deleted.
func (s *fileTaskStore) Archive(taskID string) error {
	src := s.taskDir(taskID)
	if _, err := os.Stat(filepath.Join(src, stateFileName)); err != nil {
		return &models.TaskNotFoundError{TaskID: taskID}
	}
	dst := s.archiveDir(taskID)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("archiving task: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archiving task: %w", err)
	}
	return nil
}

// Unarchive moves an archived task back into the active namespace.
func (s *fileTaskStore) Unarchive(taskID string) error {
	src := s.archiveDir(taskID)
	if _, err := os.Stat(filepath.Join(src, stateFileName)); err != nil {
		return &models.TaskNotFoundError{TaskID: taskID}
	}
	if err := os.Rename(src, s.taskDir(taskID)); err != nil {
		return fmt.Errorf("unarchiving task: %w", err)
	}
	return nil
}

// mutateTask applies fn to the decoded task record and writes it back
// atomically, bumping revision and last_accessed.
func (s *fileTaskStore) mutateTask(taskID string, fn func(*models.Task) error) error {
	path, err := s.statePath(taskID)
	if err != nil {
		return err
	}
	task, err := readTask(path)
	if err != nil {
		return err
	}
	if err := fn(task); err != nil {
		return err
	}
	task.Timestamps.LastAccessed = s.now()
	task.Revision++
	return s.writeTask(path, task)
}

// mutate applies fn to the raw JSON map form of the record, revalidates the
// result against the task schema, and writes it back atomically.
func (s *fileTaskStore) mutate(taskID string, fn func(map[string]any) error) error {
	path, err := s.statePath(taskID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path derived from store layout
	if err != nil {
		return fmt.Errorf("reading task state: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing task state: %w", err)
	}
	if err := fn(raw); err != nil {
		return err
	}

	// Bump bookkeeping fields in map form so scalar updates stay idempotent
	// for callers while last_accessed still moves forward.
	ts, ok := raw["timestamps"].(map[string]any)
	if !ok {
		ts = make(map[string]any)
		raw["timestamps"] = ts
	}
	ts["last_accessed"] = s.now().Format(time.RFC3339Nano)
	if rev, ok := raw["revision"].(float64); ok {
		raw["revision"] = rev + 1
	} else {
		raw["revision"] = 1
	}

	// Structural validation: the mutated map must still decode into a task
	// with known enum values. On failure the prior record is untouched.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidState, err)
	}
	var task models.Task
	if err := json.Unmarshal(encoded, &task); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidState, err)
	}
	if err := validateTask(&task); err != nil {
		return err
	}

	return s.writeRaw(path, encoded)
}

// validateTask rejects records with out-of-vocabulary enum values.
func validateTask(task *models.Task) error {
	if task.TaskID == "" {
		return fmt.Errorf("%w: task_id must not be empty", models.ErrInvalidState)
	}
	switch task.Status {
	case models.StatusNotStarted, models.StatusInProgress, models.StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidState, task.Status)
	}
	if task.Phase.Current != "" && !models.IsValidPhase(task.Phase.Current) {
		return fmt.Errorf("%w: unknown phase %q", models.ErrInvalidState, task.Phase.Current)
	}
	if task.Kind != "" && !models.IsValidKind(task.Kind) {
		return fmt.Errorf("%w: unknown kind %q", models.ErrInvalidState, task.Kind)
	}
	return nil
}

func (s *fileTaskStore) writeTask(path string, task *models.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding task state: %w", err)
	}
	return s.writeRaw(path, data)
}

// writeRaw writes data to a temp file in the same directory and renames it
// over path. Rename within one filesystem is atomic, so a crash mid-write
// leaves the previous record intact.
func (s *fileTaskStore) writeRaw(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
