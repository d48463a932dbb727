package models

// UnownedPathPolicy decides what the policy gate does when ownership
// resolution fails with a no-owner error.
type UnownedPathPolicy string

const (
	// UnownedBlock denies mutations to paths with no declared owner,
	// surfacing orphan files immediately.
	UnownedBlock UnownedPathPolicy = "block"
	// UnownedAllow permits mutations to unowned paths, for repositories
	// that have not finished migrating to ownership documents.
	UnownedAllow UnownedPathPolicy = "allow"
)

// RoleRule declares the deliverables expected from one actor role, checked
// (warn-only) when the actor reports completion.
type RoleRule struct {
	Actor          string `yaml:"actor" mapstructure:"actor"`
	Domain         string `yaml:"domain" mapstructure:"domain"`
	RequireCommits bool   `yaml:"require_commits" mapstructure:"require_commits"`
	RequireTests   bool   `yaml:"require_tests" mapstructure:"require_tests"`
}

// GlobalConfig holds the merged configuration loaded from .sdlcconfig.
type GlobalConfig struct {
	TaskIDPrefix   string `mapstructure:"task_id_prefix"`
	TaskIDPadWidth int    `mapstructure:"task_id_pad_width"`
	BranchPattern  string `mapstructure:"branch_pattern"`

	// CoverageBaseline is the default coverage baseline (percent) stamped
	// onto new tasks.
	CoverageBaseline float64 `mapstructure:"coverage_baseline"`

	// OwnershipDoc is the file name of a directory's descriptive document
	// carrying the ownership block.
	OwnershipDoc string `mapstructure:"ownership_doc"`

	// OwnershipTable is the static fallback consulted when the directory
	// walk reaches the repository root without a match.
	OwnershipTable []OwnershipRule `mapstructure:"ownership_table"`

	// SharedZones are gitignore-style patterns any actor may mutate.
	SharedZones []string `mapstructure:"shared_zones"`

	UnownedPaths UnownedPathPolicy `mapstructure:"unowned_paths"`

	Roles []RoleRule `mapstructure:"roles"`

	Hooks HookConfig `mapstructure:"hooks"`
}

// HookConfig holds per-event enable flags and feature toggles for the
// lifecycle hook pipeline.
type HookConfig struct {
	Enabled          bool                   `yaml:"enabled" mapstructure:"enabled"`
	SessionStart     SessionStartConfig     `yaml:"session_start" mapstructure:"session_start"`
	UserPromptSubmit UserPromptSubmitConfig `yaml:"user_prompt_submit" mapstructure:"user_prompt_submit"`
	PreToolUse       PreToolUseConfig       `yaml:"pre_tool_use" mapstructure:"pre_tool_use"`
	PostToolUse      PostToolUseConfig      `yaml:"post_tool_use" mapstructure:"post_tool_use"`
	SubagentStop     SubagentStopConfig     `yaml:"subagent_stop" mapstructure:"subagent_stop"`
}

// SessionStartConfig controls the session-start context summary.
type SessionStartConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	ShowParallel    bool `yaml:"show_parallel" mapstructure:"show_parallel"`
	ShowSuggestions bool `yaml:"show_suggestions" mapstructure:"show_suggestions"`
}

// UserPromptSubmitConfig controls prompt prerequisite validation.
type UserPromptSubmitConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	RequireTask   bool `yaml:"require_task" mapstructure:"require_task"`
	ValidateStory bool `yaml:"validate_story" mapstructure:"validate_story"`
}

// PreToolUseConfig controls the blocking pre-mutation checks.
type PreToolUseConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	EnforceOwnership bool `yaml:"enforce_ownership" mapstructure:"enforce_ownership"`
	ValidateBranches bool `yaml:"validate_branches" mapstructure:"validate_branches"`
}

// PostToolUseConfig controls post-mutation state recording.
type PostToolUseConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	TrackFiles   bool `yaml:"track_files" mapstructure:"track_files"`
	TrackCommits bool `yaml:"track_commits" mapstructure:"track_commits"`
}

// SubagentStopConfig controls actor-completion deliverable checks.
type SubagentStopConfig struct {
	Enabled              bool `yaml:"enabled" mapstructure:"enabled"`
	ValidateDeliverables bool `yaml:"validate_deliverables" mapstructure:"validate_deliverables"`
	TrackAgents          bool `yaml:"track_agents" mapstructure:"track_agents"`
}

// DefaultHookConfig returns the hook configuration used when .sdlcconfig has
// no hooks section. Everything is on.
func DefaultHookConfig() HookConfig {
	return HookConfig{
		Enabled: true,
		SessionStart: SessionStartConfig{
			Enabled:         true,
			ShowParallel:    true,
			ShowSuggestions: true,
		},
		UserPromptSubmit: UserPromptSubmitConfig{
			Enabled:       true,
			RequireTask:   true,
			ValidateStory: true,
		},
		PreToolUse: PreToolUseConfig{
			Enabled:          true,
			EnforceOwnership: true,
			ValidateBranches: true,
		},
		PostToolUse: PostToolUseConfig{
			Enabled:      true,
			TrackFiles:   true,
			TrackCommits: true,
		},
		SubagentStop: SubagentStopConfig{
			Enabled:              true,
			ValidateDeliverables: true,
			TrackAgents:          true,
		},
	}
}

// DefaultSharedZones are the zones any actor may mutate when the config
// declares none: the task-state area, story documentation, and top-level
// descriptive files.
func DefaultSharedZones() []string {
	return []string{
		".sdlc/**",
		"stories/**",
		"/*.md",
		".gitignore",
	}
}
