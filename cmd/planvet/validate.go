package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planvet/planvet/internal/engine"
	"github.com/planvet/planvet/internal/session"
	"github.com/planvet/planvet/pkg/models"
)

var (
	validateStrict  bool
	validateMaxIter int
	validateOutput  string
)

var validateCmd = &cobra.Command{
	Use:   "validate <feature-id>",
	Short: "Run the validate-fix loop for a feature",
	Long: `Validate a feature's planning artifacts against each other.

Each run checks every adjacent artifact pair in dependency order and
advances the feature's validation session: a clean run closes the
session, a failing run grants another iteration, and a failing run at
the iteration budget escalates with a ticket summarizing the findings
that kept recurring.

Warnings do not consume iterations unless --strict is set.

Exit codes:
  0  validation passed (possibly with warnings)
  1  validation failed or the run could not complete
  2  invalid invocation`,
	Args: featureIDArg,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as requiring another iteration")
	validateCmd.Flags().IntVar(&validateMaxIter, "max-iterations", 0, "Iteration budget for a new session (default from config)")
	validateCmd.Flags().StringVar(&validateOutput, "output", "", "Write the run report as JSON to this file")
}

// validateReport is the JSON shape written by --output.
type validateReport struct {
	*engine.Run
	Decision   session.DecisionKind `json:"decision"`
	Iteration  int                  `json:"iteration"`
	TicketPath string               `json:"ticket_path,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateMaxIter < 0 {
		return usageErrorf("--max-iterations must be at least 1, got %d", validateMaxIter)
	}
	featureID := args[0]

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := eng.Validate(ctx, featureID, engine.ValidateOptions{
		Strict:        validateStrict,
		MaxIterations: validateMaxIter,
	})
	if err != nil {
		return err
	}

	run := res.Run
	last := res.Session.History[len(res.Session.History)-1]
	fmt.Printf("Feature %s: %s (iteration %d of %d, %s)\n",
		featureID, statusString(run.Status),
		last.Iteration, res.Session.MaxIterations,
		formatDuration(run.Duration))

	if len(run.StaleRules) > 0 {
		fmt.Printf("%s governance index is stale (%d file(s) drifted); run 'planvet reindex'\n",
			color.YellowString("⚠"), len(run.StaleRules))
	}

	if len(run.Findings) > 0 {
		fmt.Println()
		printFindings(run.Findings)
		fmt.Println()
	}

	switch res.Decision.Kind {
	case session.DecisionPass:
		fmt.Printf("%s Plans are coherent.\n", color.GreenString("✓"))
	case session.DecisionRetry:
		fmt.Printf("Fix the findings above and validate again (next: iteration %d of %d).\n",
			res.Decision.NextIteration, res.Session.MaxIterations)
	case session.DecisionEscalate:
		fmt.Printf("%s Iteration budget exhausted after %d attempts; escalating.\n",
			color.RedString("✗"), res.Session.MaxIterations)
		if res.TicketPath != "" {
			fmt.Printf("  Ticket: %s\n", res.TicketPath)
		}
		if rep := res.Decision.Report; rep != nil && len(rep.PersistentIssues) > 0 {
			fmt.Println("  Persistent issues:")
			for _, issue := range rep.PersistentIssues {
				fmt.Printf("    %s (%d of %d iterations)\n", issue.Signature, issue.Count, rep.Iterations)
			}
		}
	}

	if validateOutput != "" {
		report := validateReport{
			Run:        run,
			Decision:   res.Decision.Kind,
			Iteration:  last.Iteration,
			TicketPath: res.TicketPath,
		}
		if err := writeJSON(validateOutput, report); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", validateOutput)
	}

	if run.Status == models.StatusFail {
		errs, _, _ := models.CountBySeverity(run.Findings)
		return fmt.Errorf("validation failed with %d error(s)", errs)
	}
	return nil
}
