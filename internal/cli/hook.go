package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/core"
	"github.com/sdlcguard/sdlcguard/pkg/models"
	claudetpl "github.com/sdlcguard/sdlcguard/templates/claude"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle coding-assistant hook events",
	Long: `Process coding-assistant hook events against the task and policy state.

Each subcommand handles a specific hook type by reading JSON from stdin and
performing the appropriate actions (context injection, prerequisite checks,
ownership enforcement, state recording, deliverable checks).

These commands are called by shell wrapper scripts installed in .claude/hooks/.`,
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install sdlcguard hook wrappers for Claude Code",
	Long: `Generate shell wrapper scripts and update .claude/settings.json
to route hook events through 'sdlcguard hook <type>'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir, _ := cmd.Flags().GetString("dir")
		if targetDir == "" {
			var err error
			targetDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}

		return installHookWrappers(targetDir)
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hook configuration status",
	Long:  `Display which sdlcguard hooks are enabled and their current configuration.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if BasePath == "" {
			fmt.Println("No sdlcguard workspace found.")
			return nil
		}

		cfg, err := loadHookConfigFromDisk()
		if err != nil {
			fmt.Println("Using default hook configuration (no .sdlcconfig hooks section).")
			dflt := models.DefaultHookConfig()
			cfg = &dflt
		}

		fmt.Printf("Hook system: %s\n\n", enabledStr(cfg.Enabled))
		fmt.Printf("SessionStart:     %s\n", enabledStr(cfg.SessionStart.Enabled))
		fmt.Printf("  show_parallel:    %s\n", enabledStr(cfg.SessionStart.ShowParallel))
		fmt.Printf("  show_suggestions: %s\n", enabledStr(cfg.SessionStart.ShowSuggestions))
		fmt.Println()
		fmt.Printf("UserPromptSubmit: %s\n", enabledStr(cfg.UserPromptSubmit.Enabled))
		fmt.Printf("  require_task:   %s\n", enabledStr(cfg.UserPromptSubmit.RequireTask))
		fmt.Printf("  validate_story: %s\n", enabledStr(cfg.UserPromptSubmit.ValidateStory))
		fmt.Println()
		fmt.Printf("PreToolUse:       %s\n", enabledStr(cfg.PreToolUse.Enabled))
		fmt.Printf("  enforce_ownership: %s\n", enabledStr(cfg.PreToolUse.EnforceOwnership))
		fmt.Printf("  validate_branches: %s\n", enabledStr(cfg.PreToolUse.ValidateBranches))
		fmt.Println()
		fmt.Printf("PostToolUse:      %s\n", enabledStr(cfg.PostToolUse.Enabled))
		fmt.Printf("  track_files:   %s\n", enabledStr(cfg.PostToolUse.TrackFiles))
		fmt.Printf("  track_commits: %s\n", enabledStr(cfg.PostToolUse.TrackCommits))
		fmt.Println()
		fmt.Printf("SubagentStop:     %s\n", enabledStr(cfg.SubagentStop.Enabled))
		fmt.Printf("  validate_deliverables: %s\n", enabledStr(cfg.SubagentStop.ValidateDeliverables))
		fmt.Printf("  track_agents:          %s\n", enabledStr(cfg.SubagentStop.TrackAgents))

		return nil
	},
}

func enabledStr(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func loadHookConfigFromDisk() (*models.HookConfig, error) {
	if BasePath == "" {
		return nil, fmt.Errorf("no base path")
	}
	cfgMgr := core.NewConfigurationManager(BasePath)
	globalCfg, err := cfgMgr.Load()
	if err != nil {
		return nil, err
	}
	cfg := globalCfg.Hooks
	if cfg == (models.HookConfig{}) {
		cfg = models.DefaultHookConfig()
	}
	return &cfg, nil
}

// installHookWrappers writes shell wrappers and updates settings.json.
func installHookWrappers(targetDir string) error {
	hooksDir := filepath.Join(targetDir, ".claude", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	// Write shell wrapper templates from embedded FS.
	hookFiles := []string{
		"sdlcguard-hook-session-start.sh",
		"sdlcguard-hook-user-prompt-submit.sh",
		"sdlcguard-hook-pre-tool-use.sh",
		"sdlcguard-hook-post-tool-use.sh",
		"sdlcguard-hook-subagent-stop.sh",
	}

	for _, name := range hookFiles {
		data, err := claudetpl.FS.ReadFile("hooks/" + name)
		if err != nil {
			return fmt.Errorf("reading embedded template %s: %w", name, err)
		}
		dest := filepath.Join(hooksDir, name)
		if err := os.WriteFile(dest, data, 0o755); err != nil {
			return fmt.Errorf("writing hook script %s: %w", name, err)
		}
		fmt.Printf("  Wrote %s\n", dest)
	}

	// Update settings.json with hook entries.
	settingsPath := filepath.Join(targetDir, ".claude", "settings.json")
	if err := updateSettingsWithHooks(settingsPath, hooksDir); err != nil {
		return fmt.Errorf("updating settings.json: %w", err)
	}

	fmt.Printf("\nHook wrappers installed in %s\n", hooksDir)
	fmt.Println("Claude Code will now route hook events through sdlcguard.")
	return nil
}

func updateSettingsWithHooks(settingsPath, hooksDir string) error {
	// Read existing settings or create new.
	var settings map[string]interface{}

	data, err := os.ReadFile(settingsPath) //nolint:gosec // G304: path from trusted CLI input
	if err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = make(map[string]interface{})
		}
	} else {
		settings = make(map[string]interface{})
	}

	// Build hooks section.
	hooksSection := map[string]interface{}{
		"SessionStart": []interface{}{
			map[string]interface{}{
				"type":    "command",
				"command": filepath.Join(hooksDir, "sdlcguard-hook-session-start.sh"),
			},
		},
		"UserPromptSubmit": []interface{}{
			map[string]interface{}{
				"type":    "command",
				"command": filepath.Join(hooksDir, "sdlcguard-hook-user-prompt-submit.sh"),
			},
		},
		"PreToolUse": []interface{}{
			map[string]interface{}{
				"type":     "command",
				"command":  filepath.Join(hooksDir, "sdlcguard-hook-pre-tool-use.sh"),
				"triggers": []string{"Edit", "Write", "MultiEdit", "Bash"},
			},
		},
		"PostToolUse": []interface{}{
			map[string]interface{}{
				"type":     "command",
				"command":  filepath.Join(hooksDir, "sdlcguard-hook-post-tool-use.sh"),
				"triggers": []string{"Edit", "Write", "MultiEdit", "Bash"},
			},
		},
		"SubagentStop": []interface{}{
			map[string]interface{}{
				"type":    "command",
				"command": filepath.Join(hooksDir, "sdlcguard-hook-subagent-stop.sh"),
			},
		},
	}

	settings["hooks"] = hooksSection

	// Write back settings.
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	// Ensure trailing newline.
	if !strings.HasSuffix(string(out), "\n") {
		out = append(out, '\n')
	}
	if err := os.WriteFile(settingsPath, out, 0o644); err != nil {
		return fmt.Errorf("writing settings.json: %w", err)
	}
	fmt.Printf("  Updated %s\n", settingsPath)
	return nil
}

func init() {
	hookInstallCmd.Flags().String("dir", "", "Target directory (defaults to current directory)")

	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookStatusCmd)
	rootCmd.AddCommand(hookCmd)
}
