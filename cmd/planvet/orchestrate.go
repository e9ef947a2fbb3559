package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planvet/planvet/pkg/models"
)

var orchestrateOutput string

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <feature-id>",
	Short: "Produce the checkpointed execution plan",
	Long: `Order a feature's planning artifacts by their dependencies and emit
an execution plan: one step per artifact, each with a checkpoint that
must hold before work advances past it.

Validation findings attach to the step whose artifact must change, so
the plan doubles as a worklist when the feature is not yet coherent.`,
	Args: featureIDArg,
	RunE: runOrchestrate,
}

func init() {
	orchestrateCmd.Flags().StringVar(&orchestrateOutput, "output", "", "Write the plan as JSON to this file")
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	featureID := args[0]

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := eng.Orchestrate(ctx, featureID)
	if err != nil {
		return err
	}

	fmt.Printf("Execution plan for %s: %s\n\n", featureID, statusString(res.Status))
	for _, step := range res.Steps {
		fmt.Printf("%d. %s\n", step.Ordinal, step.Type)
		if len(step.DependsOn) > 0 {
			fmt.Printf("   depends on: %v\n", step.DependsOn)
		}
		fmt.Printf("   checkpoint: %s\n", step.Checkpoint)
		for _, f := range step.Findings {
			fmt.Println(" " + findingLine(f))
		}
	}
	if len(res.Unattached) > 0 {
		fmt.Println("\nFindings without a planned step:")
		printFindings(res.Unattached)
	}

	if orchestrateOutput != "" {
		if err := writeJSON(orchestrateOutput, res); err != nil {
			return err
		}
		fmt.Printf("\nPlan written to %s\n", orchestrateOutput)
	}

	if res.Status == models.StatusFail {
		errs, _, _ := models.CountBySeverity(res.Findings)
		return fmt.Errorf("plans are not coherent: %d error(s)", errs)
	}
	return nil
}
