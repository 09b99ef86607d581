package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/util"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage experiments",
	Long:  `Create experiments, change their status and inspect their results.`,
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create <definition.json>",
	Short: "Register an experiment from a JSON definition",
	Long: `Register an experiment from a JSON definition file.

The definition uses the same shape as the POST /api/experiments body:

  {
    "name": "checkout button",
    "variants": [
      {"id": "control", "weight": 0.5, "is_control": true},
      {"id": "green", "weight": 0.5}
    ],
    "metrics": ["purchase"]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentCreate,
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered experiments",
	RunE:  runExperimentList,
}

var experimentStatusCmd = &cobra.Command{
	Use:   "status <experiment-id> <draft|running|paused|completed>",
	Short: "Change the status of an experiment",
	Args:  cobra.ExactArgs(2),
	RunE:  runExperimentStatus,
}

var experimentResultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show per-variant results for an experiment",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentResults,
}

func init() {
	rootCmd.AddCommand(experimentCmd)
	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentStatusCmd)
	experimentCmd.AddCommand(experimentResultsCmd)
}

func runExperimentCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}

	var definition map[string]any
	if err := json.Unmarshal(data, &definition); err != nil {
		return fmt.Errorf("invalid definition JSON: %w", err)
	}

	created, err := newClient(apiAddr).RegisterExperiment(definition)
	if err != nil {
		return err
	}

	fmt.Printf("Created experiment %s (%s)\n", created["id"], created["status"])
	return nil
}

func runExperimentList(cmd *cobra.Command, args []string) error {
	experiments, err := newClient(apiAddr).ListExperiments()
	if err != nil {
		return err
	}
	if len(experiments) == 0 {
		fmt.Println("No experiments registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tMETRICS")
	for _, exp := range experiments {
		var variantIDs []string
		if variants, ok := exp["variants"].([]any); ok {
			for _, v := range variants {
				if variant, ok := v.(map[string]any); ok {
					id, _ := variant["id"].(string)
					if variant["is_control"] == true {
						id += "*"
					}
					variantIDs = append(variantIDs, id)
				}
			}
		}
		var metrics []string
		if ms, ok := exp["metrics"].([]any); ok {
			for _, m := range ms {
				if s, ok := m.(string); ok {
					metrics = append(metrics, s)
				}
			}
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%s\t%s\n",
			exp["id"], exp["name"], exp["status"],
			strings.Join(variantIDs, ","), strings.Join(metrics, ","))
	}
	return w.Flush()
}

func runExperimentStatus(cmd *cobra.Command, args []string) error {
	if err := newClient(apiAddr).SetStatus(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Experiment %s is now %s\n", args[0], args[1])
	return nil
}

func runExperimentResults(cmd *cobra.Command, args []string) error {
	results, err := newClient(apiAddr).Results(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tPARTICIPANTS\tCONVERSIONS\tRATE\tCONFIDENCE\tLIFT\tP(BEST)")
	for _, r := range results {
		variantID, _ := r["variant_id"].(string)
		if r["is_control"] == true {
			variantID += "*"
		}

		participants, _ := r["participants"].(float64)
		conversions, _ := r["conversions"].(float64)
		rate, _ := r["conversion_rate"].(float64)
		pBest, _ := r["probability_best"].(float64)

		confidence := "-"
		if c, ok := r["confidence"].(float64); ok && r["is_control"] != true {
			confidence = fmt.Sprintf("%.3f", c)
			if r["is_significant"] == true {
				confidence += " !"
			}
		}
		lift := "-"
		if l, ok := r["lift"].(float64); ok {
			lift = fmt.Sprintf("%+.1f%%", l)
		}

		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.4f\t%s\t%s\t%.3f\n",
			variantID, util.FormatNumber(int64(participants)), conversions, rate,
			confidence, lift, pBest)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println("\n* control variant, ! statistically significant")
	return nil
}
