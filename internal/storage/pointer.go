package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// PointerStore persists the branch-derived current-task pointer. The
// pointer is a convenience cache, not authoritative task state: it is
// host-local, never version-controlled, and fully regenerable from the
// current branch name.
type PointerStore interface {
	Set(taskID string) error
	Current() (string, error)
}

type filePointerStore struct {
	basePath string
}

// NewPointerStore creates a PointerStore writing
// <base>/.sdlc/tasks/current.txt.
func NewPointerStore(basePath string) PointerStore {
	return &filePointerStore{basePath: basePath}
}

func (p *filePointerStore) path() string {
	return filepath.Join(p.basePath, ".sdlc", "tasks", "current.txt")
}

func (p *filePointerStore) Set(taskID string) error {
	if taskID == "" {
		taskID = models.NoCurrentTask
	}
	if err := os.MkdirAll(filepath.Dir(p.path()), 0o750); err != nil {
		return fmt.Errorf("creating pointer directory: %w", err)
	}
	if err := os.WriteFile(p.path(), []byte(taskID+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing current-task pointer: %w", err)
	}
	return nil
}

// Current returns the pointed-to task id, or models.NoCurrentTask when the pointer
// file is missing or empty (a deleted pointer is not an error).
func (p *filePointerStore) Current() (string, error) {
	data, err := os.ReadFile(p.path())
	if err != nil {
		if os.IsNotExist(err) {
			return models.NoCurrentTask, nil
		}
		return "", fmt.Errorf("reading current-task pointer: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return models.NoCurrentTask, nil
	}
	return id, nil
}
