// Package session tracks the bounded validate-fix loop for one feature.
// A session advances once per validation pass and terminates as passed
// or escalated; the escalation path carries enough aggregated history
// that a reviewer never replays iterations by hand.
package session

import (
	"time"

	"github.com/planvet/planvet/pkg/models"
)

// Status is the lifecycle state of a validation session.
type Status string

const (
	// StatusInProgress means the validate-fix loop is still running.
	StatusInProgress Status = "in_progress"
	// StatusPassed is terminal: validation succeeded.
	StatusPassed Status = "passed"
	// StatusEscalated is terminal: the iteration budget ran out.
	StatusEscalated Status = "escalated"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusPassed, StatusEscalated:
		return true
	default:
		return false
	}
}

// Terminal returns true once the session can no longer advance.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusEscalated
}

// IterationRecord is one completed validation pass.
type IterationRecord struct {
	// Iteration is the 1-based pass number.
	Iteration int `json:"iteration"`
	// Status is the validation outcome of the pass.
	Status models.Status `json:"status"`
	// Timestamp records when the pass completed.
	Timestamp time.Time `json:"timestamp"`
	// Findings is the full finding list of the pass.
	Findings []models.Finding `json:"findings"`
}

// Session is the persisted per-feature loop state. One file per feature;
// mutated once per validate-fix cycle under an exclusive lock.
type Session struct {
	// FeatureID names the feature the session tracks.
	FeatureID string `json:"feature_id"`
	// CurrentIteration is the 1-based pass the session is on.
	CurrentIteration int `json:"current_iteration"`
	// MaxIterations bounds the loop; reaching it escalates.
	MaxIterations int `json:"max_iterations"`
	// Status is the lifecycle state.
	Status Status `json:"status"`
	// History records every completed pass in order.
	History []IterationRecord `json:"history"`
	// CreatedAt is when the session started.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the session last advanced.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh in-progress session on iteration 1.
func NewSession(featureID string, maxIterations int) *Session {
	if maxIterations < 1 {
		maxIterations = 1
	}
	now := time.Now().UTC()
	return &Session{
		FeatureID:        featureID,
		CurrentIteration: 1,
		MaxIterations:    maxIterations,
		Status:           StatusInProgress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
