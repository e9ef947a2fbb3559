package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planvet/planvet/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status <feature-id>",
	Short: "Show a feature's session and recent runs",
	Long: `Display the validation state of a feature.

Shows:
  - The session's status and iteration progress
  - Findings per recorded iteration
  - Recent validation runs and their outcomes`,
	Args: featureIDArg,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	featureID := args[0]

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := eng.Status(ctx, featureID)
	if err != nil {
		return err
	}

	if report.Session == nil {
		fmt.Printf("No validation session for %s. Run 'planvet validate %s' to start.\n",
			featureID, featureID)
	} else {
		displaySession(report.Session)
	}

	if len(report.Runs) == 0 {
		return nil
	}
	fmt.Println("\nRecent runs:")
	for _, r := range report.Runs {
		elapsed := formatDuration(time.Since(r.CreatedAt))
		fmt.Printf("  %s: %s (iteration %d, %de/%dw/%di, took %s, %s ago)\n",
			r.RunID, statusString(r.Status), r.Iteration,
			r.Errors, r.Warnings, r.Infos,
			formatDuration(r.Duration), elapsed)
	}
	return nil
}

func displaySession(s *session.Session) {
	fmt.Printf("Feature: %s\n", s.FeatureID)
	fmt.Printf("  Session: %s\n", sessionStatusString(s.Status))
	fmt.Printf("  Iteration: %d of %d\n", s.CurrentIteration, s.MaxIterations)
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(s.CreatedAt)))
	fmt.Printf("  Updated: %s ago\n", formatDuration(time.Since(s.UpdatedAt)))

	if len(s.History) == 0 {
		return
	}
	fmt.Println("\nIterations:")
	for _, rec := range s.History {
		fmt.Printf("  %d. %s, %d finding(s)\n", rec.Iteration, statusString(rec.Status), len(rec.Findings))
	}
}

func sessionStatusString(s session.Status) string {
	switch s {
	case session.StatusPassed:
		return "passed"
	case session.StatusEscalated:
		return "escalated"
	case session.StatusInProgress:
		return "in progress"
	}
	return string(s)
}
