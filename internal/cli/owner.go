package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/policy"
)

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Resolve and check path ownership",
	Long: `Ownership commands.

Ownership is declared in per-directory documents (OWNERS.md by default)
with a fallback pattern table in .sdlcconfig. The nearest declaration on
the walk from a path up to the repository root wins.`,
}

var ownerResolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve the owner(s) of a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Owners == nil {
			return fmt.Errorf("ownership resolver not initialized")
		}

		record, err := Owners.Resolve(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Owner(s): %s\n", strings.Join(record.Owners, ", "))
		if record.Dir != "" {
			fmt.Printf("Dir:      %s\n", record.Dir)
		}
		fmt.Printf("Source:   %s\n", record.Source)
		return nil
	},
}

var ownerCheckCmd = &cobra.Command{
	Use:   "check <actor> <path>",
	Short: "Check whether an actor may mutate a path",
	Long: `Run the policy gate for a hypothetical mutation without performing it.
Exits non-zero when the mutation would be denied.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Gate == nil {
			return fmt.Errorf("policy gate not initialized")
		}

		actor, path := args[0], args[1]
		decision := Gate.Authorize(actor, path, policy.OpMutate)
		if decision.Allowed {
			fmt.Printf("ALLOW %s -> %s\n", actor, path)
			return nil
		}

		fmt.Printf("DENY  %s -> %s\n", actor, path)
		fmt.Printf("  %s\n", decision.Reason)
		if len(decision.RequiredOwners) > 0 {
			fmt.Printf("  Delegate to: %s\n", strings.Join(decision.RequiredOwners, ", "))
		}
		return fmt.Errorf("mutation denied")
	},
}

func init() {
	ownerCmd.AddCommand(ownerResolveCmd)
	ownerCmd.AddCommand(ownerCheckCmd)
	rootCmd.AddCommand(ownerCmd)
}
