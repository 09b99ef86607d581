package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign <subject-id> <experiment-id>",
	Short: "Assign a subject to a variant",
	Long: `Assign a subject to a variant of a running experiment.

Assignment is deterministic: the same subject and experiment always
yield the same variant. If the experiment is not running, no assignment
is made.`,
	Args: cobra.ExactArgs(2),
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	assignment, ok, err := newClient(apiAddr).Assign(args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No assignment (experiment not running or unknown).")
		return nil
	}

	fmt.Printf("Subject %s -> variant %v\n", args[0], assignment["variant_id"])
	if config, ok := assignment["config"].(map[string]any); ok && len(config) > 0 {
		for k, v := range config {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}
	return nil
}
