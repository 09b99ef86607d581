package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List recent advisory flags",
	Long:  `List recent UnderperformingFlag advisories raised by the optimization scheduler.`,
	RunE:  runFlags,
}

var flagsExperimentID string

func init() {
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.Flags().StringVar(&flagsExperimentID, "experiment", "", "Only flags for this experiment")
}

func runFlags(cmd *cobra.Command, args []string) error {
	client := newClient(apiAddr)

	flags, err := client.Flags(flagsExperimentID)
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		fmt.Println("No advisory flags.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RAISED\tEXPERIMENT\tVARIANT\tCONFIDENCE\tLIFT")
	for _, f := range flags {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.1f%%\n",
			f.RaisedAt.Format("2006-01-02 15:04"), f.ExperimentID, f.VariantID, f.Confidence, f.Lift)
	}
	return w.Flush()
}

// logFlagSink raises flags into the process log; the always-on sink.
func logFlagSink() ports.FlagSink {
	return ports.FlagSinkFunc(func(ctx context.Context, flag domain.UnderperformingFlag) {
		log.Printf("flag: experiment %s variant %s underperforming: rate %.4f vs control %.4f (confidence %.3f, lift %.1f%%)",
			flag.ExperimentID, flag.VariantID, flag.VariantRate, flag.ControlRate, flag.Confidence, flag.Lift)
	})
}
