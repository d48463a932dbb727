package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/core"
)

// ProjectInit is the ProjectInitializer used by the init command.
// Set during application wiring.
var ProjectInit core.ProjectInitializer

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize an sdlcguard workspace",
	Long: `Initialize a new or existing repository with the sdlcguard workspace
structure: the task-state area under .sdlc/tasks/, the stories/ directory,
and a starter .sdlcconfig.

Safe to run on existing projects -- files and directories that already
exist are skipped and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ProjectInit == nil {
			return fmt.Errorf("project initializer not initialized")
		}

		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		prefix, _ := cmd.Flags().GetString("prefix")

		result, err := ProjectInit.Init(core.InitConfig{
			BasePath: absPath,
			Prefix:   prefix,
		})
		if err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}

		if len(result.Created) > 0 {
			fmt.Println("Created:")
			for _, p := range result.Created {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Printf("  %s\n", rel)
			}
		}
		if len(result.Skipped) > 0 {
			fmt.Println("Skipped (already exist):")
			for _, p := range result.Skipped {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Printf("  %s\n", rel)
			}
		}

		fmt.Printf("\nWorkspace initialized at %s\n", absPath)
		return nil
	},
}

func init() {
	initCmd.Flags().String("prefix", "TASK", "Task ID prefix")
	rootCmd.AddCommand(initCmd)
}
