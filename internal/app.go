// Package internal provides the App struct that wires all components of
// sdlcguard together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"

	"github.com/sdlcguard/sdlcguard/internal/cli"
	"github.com/sdlcguard/sdlcguard/internal/core"
	"github.com/sdlcguard/sdlcguard/internal/integration"
	"github.com/sdlcguard/sdlcguard/internal/observability"
	"github.com/sdlcguard/sdlcguard/internal/policy"
	"github.com/sdlcguard/sdlcguard/internal/storage"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// App holds all service dependencies for sdlcguard.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	Store   storage.TaskStore
	Pointer storage.PointerStore

	// Policy layer
	Owners policy.Resolver
	Gate   *policy.Gate

	// Core services
	Binding     *core.BranchBinding
	Gates       *core.GateAggregator
	Manager     *core.TaskManager
	HookEngine  core.HookEngine
	ProjectInit core.ProjectInitializer

	// Integration services
	Git integration.GitRepo

	// Observability
	EventLog observability.EventLog
}

// NewApp creates and wires all components. basePath is the repository root
// containing .sdlcconfig (or the directory a future "init" will populate).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		// Use defaults if the config file is missing or unreadable.
		cfg = core.DefaultConfig()
	}
	app.Config = cfg

	// --- Storage layer ---
	app.Store = storage.NewTaskStore(basePath, cfg.TaskIDPrefix, cfg.TaskIDPadWidth, cfg.CoverageBaseline)
	app.Pointer = storage.NewPointerStore(basePath)

	// --- Integration services ---
	app.Git = integration.NewGitRepo(basePath)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".sdlc", "events.jsonl")
	if err := os.MkdirAll(filepath.Dir(eventLogPath), 0o750); err == nil {
		app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
		if err != nil {
			// Non-fatal: disable the audit trail if the log can't be created.
			app.EventLog = nil
		}
	}

	// --- Policy layer ---
	app.Owners = policy.NewResolver(basePath, cfg.OwnershipDoc, cfg.OwnershipTable)
	app.Gate = policy.NewGate(basePath, app.Owners, cfg.SharedZones, cfg.UnownedPaths)

	// --- Core services ---
	app.Binding = core.NewBranchBinding(cfg.TaskIDPrefix, app.Pointer)
	app.Gates = core.NewGateAggregator(true)

	gitAd := &gitAdapter{repo: app.Git}
	app.Manager = core.NewTaskManager(basePath, cfg.BranchPattern, app.Store, app.Pointer, gitAd, app.Gates, app.EventLog)

	hookCfg := cfg.Hooks
	// If no hooks section was configured, use sensible defaults.
	if hookCfg == (models.HookConfig{}) {
		hookCfg = models.DefaultHookConfig()
	}
	recorder := &taskRecorderAdapter{store: app.Store}
	app.HookEngine = core.NewHookEngine(
		basePath,
		hookCfg,
		cfg.Roles,
		recorder,
		app.Pointer,
		app.Binding,
		app.Gate,
		gitAd,
		app.EventLog,
	)

	app.ProjectInit = core.NewProjectInitializer()

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Store = app.Store
	cli.Pointer = app.Pointer
	cli.Manager = app.Manager
	cli.Gates = app.Gates
	cli.Binding = app.Binding
	cli.Owners = app.Owners
	cli.Gate = app.Gate
	cli.EventLog = app.EventLog
	cli.HookEngine = app.HookEngine
	cli.ProjectInit = app.ProjectInit

	return app, nil
}

// Close releases resources held by the App, such as the event log file
// handle. Safe to call when EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the repository root sdlcguard operates in.
// It checks the SDLCGUARD_HOME env var, then walks up from the current
// directory looking for .sdlcconfig, falling back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("SDLCGUARD_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, ".sdlcconfig")); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return dir
}

// --- Adapters ---

// taskRecorderAdapter adapts storage.TaskStore to core.TaskRecorder,
// supplying the in-progress listing the store expresses as a filter.
type taskRecorderAdapter struct {
	store storage.TaskStore
}

func (a *taskRecorderAdapter) Get(taskID string) (*models.Task, error) {
	return a.store.Get(taskID)
}

func (a *taskRecorderAdapter) ListInProgress() ([]*models.Task, error) {
	return a.store.List(storage.TaskFilter{Status: models.StatusInProgress})
}

func (a *taskRecorderAdapter) AddFileModified(taskID, path string) error {
	return a.store.AddFileModified(taskID, path)
}

func (a *taskRecorderAdapter) AppendCommit(taskID string, commit models.Commit) error {
	return a.store.AppendCommit(taskID, commit)
}

func (a *taskRecorderAdapter) AddAgentUsed(taskID, actor string) error {
	return a.store.AddAgentUsed(taskID, actor)
}

// gitAdapter adapts integration.GitRepo to core.GitBrancher, converting
// commit info to the models type the core layer speaks.
type gitAdapter struct {
	repo integration.GitRepo
}

func (a *gitAdapter) CurrentBranch() (string, error) {
	return a.repo.CurrentBranch()
}

func (a *gitAdapter) CreateBranch(name string) error {
	return a.repo.CreateBranch(name)
}

func (a *gitAdapter) HeadCommit() (models.Commit, error) {
	info, err := a.repo.HeadCommit()
	if err != nil {
		return models.Commit{}, err
	}
	return models.Commit{
		SHA:          info.SHA,
		Message:      info.Message,
		Timestamp:    info.Timestamp,
		FilesChanged: info.FilesChanged,
	}, nil
}
