package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig carries the parameters for initializing a workspace.
type InitConfig struct {
	BasePath string
	Prefix   string
}

// InitResult reports what Init created and what already existed.
type InitResult struct {
	Created []string
	Skipped []string
}

// ProjectInitializer sets up the workspace structure a repository needs
// before tasks can be created.
type ProjectInitializer interface {
	Init(config InitConfig) (*InitResult, error)
}

type projectInitializer struct{}

// NewProjectInitializer creates a ProjectInitializer.
func NewProjectInitializer() ProjectInitializer {
	return &projectInitializer{}
}

const configTemplate = `# sdlcguard workspace configuration.
task_id:
  prefix: %s
  pad_width: 3

branch:
  pattern: "{kind}/{task}-{description}-{story}"

quality:
  coverage_baseline: 80

ownership:
  doc: OWNERS.md
  unowned_paths: block
  # shared_zones:
  #   - ".sdlc/**"
  #   - "stories/**"
  #   - "/*.md"
  #   - ".gitignore"
  # table:
  #   - pattern: "ops/**"
  #     owners: [devops-engineer]
`

// Init creates the task-state area, story directory, and a starter
// .sdlcconfig. Existing files and directories are skipped, never
// overwritten, so Init is safe to run on an existing workspace.
func (p *projectInitializer) Init(config InitConfig) (*InitResult, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "TASK"
	}

	result := &InitResult{}

	dirs := []string{
		filepath.Join(config.BasePath, ".sdlc", "tasks"),
		filepath.Join(config.BasePath, "stories"),
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			result.Skipped = append(result.Skipped, dir)
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		result.Created = append(result.Created, dir)
	}

	cfgPath := filepath.Join(config.BasePath, ".sdlcconfig")
	if _, err := os.Stat(cfgPath); err == nil {
		result.Skipped = append(result.Skipped, cfgPath)
		return result, nil
	}
	content := fmt.Sprintf(configTemplate, prefix)
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", cfgPath, err)
	}
	result.Created = append(result.Created, cfgPath)

	return result, nil
}
