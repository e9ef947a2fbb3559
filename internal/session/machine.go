package session

import (
	"time"

	"github.com/planvet/planvet/pkg/models"
)

// DecisionKind is the outcome of advancing a session.
type DecisionKind string

const (
	// DecisionPass means validation succeeded; the session is terminal.
	DecisionPass DecisionKind = "pass"
	// DecisionRetry means another validate-fix cycle should run.
	DecisionRetry DecisionKind = "retry"
	// DecisionEscalate means the iteration budget ran out; the session is
	// terminal and the report summarizes what kept failing.
	DecisionEscalate DecisionKind = "escalate"
)

// Decision is the transition result of one Advance call.
type Decision struct {
	// Kind selects the outcome.
	Kind DecisionKind
	// NextIteration is set on retry: the iteration the next pass runs as.
	NextIteration int
	// Report is set on escalate.
	Report *EscalationReport
}

// Advance applies one validation outcome to an in-progress session and
// returns the decision. The pass's findings are recorded in history
// before the transition is computed. Statuses that need fixing are FAIL
// always and WARNINGS under strict; anything else passes. Reaching the
// iteration budget escalates exactly on the call where the current
// iteration equals it, never earlier.
func Advance(s *Session, status models.Status, findings []models.Finding, strict bool) Decision {
	now := time.Now().UTC()
	s.History = append(s.History, IterationRecord{
		Iteration: s.CurrentIteration,
		Status:    status,
		Timestamp: now,
		Findings:  findings,
	})
	s.UpdatedAt = now

	needsFix := status == models.StatusFail || (strict && status == models.StatusWarnings)
	if !needsFix {
		s.Status = StatusPassed
		return Decision{Kind: DecisionPass}
	}

	if s.CurrentIteration < s.MaxIterations {
		s.CurrentIteration++
		return Decision{Kind: DecisionRetry, NextIteration: s.CurrentIteration}
	}

	s.Status = StatusEscalated
	return Decision{Kind: DecisionEscalate, Report: BuildReport(s)}
}
