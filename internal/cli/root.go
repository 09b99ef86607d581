package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "splitlab",
	Short: "A/B testing engine with deterministic assignment and statistical analysis",
	Long: `splitlab is an experimentation engine: it deterministically assigns
subjects to experiment variants, records conversions, and computes
frequentist and Bayesian estimates of which variant performs best.

Run the service with "splitlab serve"; the other commands are thin
clients of a running instance.`,
}

var apiAddr string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "http://localhost:8080", "Address of the splitlab API")
}
