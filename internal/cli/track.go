package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <subject-id> <experiment-id> <metric>",
	Short: "Record a conversion for a subject",
	Long: `Record a conversion event for a subject.

Tracking is fire and forget: the server accepts every event and silently
discards those that do not match an exposed subject, a known experiment
or a declared metric.`,
	Args: cobra.ExactArgs(3),
	RunE: runTrack,
}

var trackValue float64

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().Float64Var(&trackValue, "value", 1.0, "Conversion value")
}

func runTrack(cmd *cobra.Command, args []string) error {
	if err := newClient(apiAddr).Track(args[0], args[1], args[2], trackValue); err != nil {
		return err
	}
	fmt.Printf("Recorded %s = %g for subject %s\n", args[2], trackValue, args[0])
	return nil
}
