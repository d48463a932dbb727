// Package core contains the business logic for sdlcguard, including the
// task lifecycle manager, branch binding, policy-aware hook engine,
// quality gate aggregation, and configuration.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sdlcguard/sdlcguard/pkg/models"
	"github.com/spf13/viper"
)

// validPrefixPattern matches uppercase alphanumeric prefixes between 1 and 10 characters.
var validPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// ConfigurationManager defines the interface for loading and validating
// configuration from the .sdlcconfig file.
type ConfigurationManager interface {
	Load() (*models.GlobalConfig, error)
	Validate(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	// basePath is the root directory where .sdlcconfig resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .sdlcconfig from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a GlobalConfig populated with sensible defaults.
func DefaultConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		TaskIDPrefix:     "TASK",
		TaskIDPadWidth:   3,
		BranchPattern:    "{kind}/{task}-{description}-{story}",
		CoverageBaseline: 80,
		OwnershipDoc:     "OWNERS.md",
		SharedZones:      models.DefaultSharedZones(),
		UnownedPaths:     models.UnownedBlock,
		Hooks:            models.DefaultHookConfig(),
	}
}

// Load reads the .sdlcconfig file from the base path using Viper.
// If the file does not exist, defaults are returned.
func (cm *viperConfigManager) Load() (*models.GlobalConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(".sdlcconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("task_id.prefix", cfg.TaskIDPrefix)
	v.SetDefault("task_id.pad_width", cfg.TaskIDPadWidth)
	v.SetDefault("branch.pattern", cfg.BranchPattern)
	v.SetDefault("quality.coverage_baseline", cfg.CoverageBaseline)
	v.SetDefault("ownership.doc", cfg.OwnershipDoc)
	v.SetDefault("ownership.unowned_paths", string(cfg.UnownedPaths))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .sdlcconfig: %w", err)
	}

	// Map nested YAML keys to flat GlobalConfig fields.
	cfg.TaskIDPrefix = v.GetString("task_id.prefix")
	cfg.BranchPattern = v.GetString("branch.pattern")
	cfg.CoverageBaseline = v.GetFloat64("quality.coverage_baseline")
	cfg.OwnershipDoc = v.GetString("ownership.doc")
	cfg.UnownedPaths = models.UnownedPathPolicy(v.GetString("ownership.unowned_paths"))

	// Use IsSet to distinguish "not set" (use default 3) from "explicitly set to 0".
	if v.IsSet("task_id.pad_width") {
		cfg.TaskIDPadWidth = v.GetInt("task_id.pad_width")
	}
	if v.IsSet("ownership.shared_zones") {
		cfg.SharedZones = v.GetStringSlice("ownership.shared_zones")
	}
	if v.IsSet("ownership.table") {
		var table []models.OwnershipRule
		if err := v.UnmarshalKey("ownership.table", &table); err != nil {
			return nil, fmt.Errorf("parsing ownership.table: %w", err)
		}
		cfg.OwnershipTable = table
	}
	if v.IsSet("roles") {
		var roles []models.RoleRule
		if err := v.UnmarshalKey("roles", &roles); err != nil {
			return nil, fmt.Errorf("parsing roles: %w", err)
		}
		cfg.Roles = roles
	}
	if v.IsSet("hooks") {
		hooks := models.DefaultHookConfig()
		if err := v.UnmarshalKey("hooks", &hooks); err != nil {
			return nil, fmt.Errorf("parsing hooks: %w", err)
		}
		cfg.Hooks = hooks
	}

	return cfg, nil
}

// Validate checks the provided configuration for invalid values and
// returns a clear error message identifying the problem.
func (cm *viperConfigManager) Validate(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.TaskIDPrefix == "" {
		errs = append(errs, "task_id.prefix must not be empty")
	}

	if cfg.TaskIDPrefix != "" && !validPrefixPattern.MatchString(cfg.TaskIDPrefix) {
		errs = append(errs, fmt.Sprintf(
			"task_id.prefix %q is invalid, must match [A-Z0-9]{1,10}",
			cfg.TaskIDPrefix,
		))
	}

	if cfg.TaskIDPadWidth < 0 || cfg.TaskIDPadWidth > 10 {
		errs = append(errs, fmt.Sprintf(
			"task_id.pad_width %d is invalid, must be between 0 and 10",
			cfg.TaskIDPadWidth,
		))
	}

	if cfg.BranchPattern != "" && !strings.Contains(cfg.BranchPattern, "{task}") {
		errs = append(errs, fmt.Sprintf(
			"branch.pattern %q must contain {task} placeholder",
			cfg.BranchPattern,
		))
	}

	if cfg.CoverageBaseline < 0 || cfg.CoverageBaseline > 100 {
		errs = append(errs, fmt.Sprintf(
			"quality.coverage_baseline %.1f is invalid, must be between 0 and 100",
			cfg.CoverageBaseline,
		))
	}

	if cfg.UnownedPaths != models.UnownedBlock && cfg.UnownedPaths != models.UnownedAllow {
		errs = append(errs, fmt.Sprintf(
			"ownership.unowned_paths %q is invalid, must be block or allow",
			cfg.UnownedPaths,
		))
	}

	for i, rule := range cfg.OwnershipTable {
		if rule.Pattern == "" {
			errs = append(errs, fmt.Sprintf("ownership.table[%d].pattern must not be empty", i))
		}
		if len(rule.Owners) == 0 {
			errs = append(errs, fmt.Sprintf("ownership.table[%d].owners must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
