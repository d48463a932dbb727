package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	guardmcp "github.com/sdlcguard/sdlcguard/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the sdlcguard MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sdlcguard MCP server on stdio",
	Long: `Start the sdlcguard MCP server on stdio transport.

The server exposes task and policy state as MCP tools that AI coding
assistants can call: get_current_task, get_task, list_tasks, resolve_owner,
evaluate_quality_gates, update_task_phase.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Manager == nil {
			return fmt.Errorf("task store not initialized")
		}

		srv := guardmcp.NewServer(Store, Pointer, Owners, Gates, Manager, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
