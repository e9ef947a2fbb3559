package session

import (
	"sort"

	"github.com/planvet/planvet/pkg/models"
)

// PersistentIssue is one finding signature that kept recurring across
// iterations.
type PersistentIssue struct {
	// Signature is the recurrence key (source, field, code).
	Signature string `json:"signature"`
	// Count is how many iterations contained the signature.
	Count int `json:"count"`
	// Example is the first finding seen with this signature.
	Example models.Finding `json:"example"`
}

// EscalationReport is the payload handed to a human reviewer when a
// session escalates.
type EscalationReport struct {
	// FeatureID names the escalated feature.
	FeatureID string `json:"feature_id"`
	// Iterations is how many passes ran before escalating.
	Iterations int `json:"iterations"`
	// MaxIterations is the budget that ran out.
	MaxIterations int `json:"max_iterations"`
	// History is the full pass-by-pass record.
	History []IterationRecord `json:"history"`
	// PersistentIssues lists signatures recurring in two or more
	// iterations, most frequent first.
	PersistentIssues []PersistentIssue `json:"persistent_issues"`
}

// BuildReport aggregates a session's history into an escalation report.
// A signature counts once per iteration it appears in, so a finding
// duplicated inside one pass does not inflate its recurrence.
func BuildReport(s *Session) *EscalationReport {
	counts := make(map[string]int)
	examples := make(map[string]models.Finding)

	for _, rec := range s.History {
		seen := make(map[string]bool)
		for _, f := range rec.Findings {
			sig := f.Signature()
			if seen[sig] {
				continue
			}
			seen[sig] = true
			counts[sig]++
			if _, ok := examples[sig]; !ok {
				examples[sig] = f
			}
		}
	}

	var issues []PersistentIssue
	for sig, n := range counts {
		if n < 2 {
			continue
		}
		issues = append(issues, PersistentIssue{
			Signature: sig,
			Count:     n,
			Example:   examples[sig],
		})
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Count != issues[j].Count {
			return issues[i].Count > issues[j].Count
		}
		return issues[i].Signature < issues[j].Signature
	})

	return &EscalationReport{
		FeatureID:        s.FeatureID,
		Iterations:       len(s.History),
		MaxIterations:    s.MaxIterations,
		History:          s.History,
		PersistentIssues: issues,
	}
}
