package cli

import (
	"os"

	"github.com/sdlcguard/sdlcguard/internal/core"
	"github.com/sdlcguard/sdlcguard/internal/observability"
	"github.com/sdlcguard/sdlcguard/internal/policy"
	"github.com/sdlcguard/sdlcguard/internal/storage"
)

// Service instances, set during app initialization in app.go.
var (
	// BasePath is the repository root containing .sdlcconfig.
	BasePath string

	Store    storage.TaskStore
	Pointer  storage.PointerStore
	Manager  *core.TaskManager
	Gates    *core.GateAggregator
	Binding  *core.BranchBinding
	Owners   policy.Resolver
	Gate     *policy.Gate
	EventLog observability.EventLog

	// HookEngine processes lifecycle hook events. Nil when no workspace
	// was found; hook commands then no-op instead of blocking.
	HookEngine core.HookEngine
)

// osExit is swapped out in tests that exercise blocking hook paths.
var osExit = os.Exit

