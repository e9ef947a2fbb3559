// Package orchestrate turns an execution order and a finding list into a
// stepwise plan with per-step checkpoints. It plans; it never executes.
package orchestrate

import (
	"time"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

// defaultCheckpoints describe what must be true before advancing past
// each artifact type's step.
var defaultCheckpoints = map[models.ArtifactType]string{
	models.ArtifactSchema:       "migrations applied and schema re-readable",
	models.ArtifactContract:     "contract matches schema field-for-field",
	models.ArtifactLogic:        "endpoints respond and handlers cover every route",
	models.ArtifactPresentation: "frontend calls resolve against live endpoints",
	models.ArtifactComponents:   "components render with contract-shaped props",
}

// Step is one execution step annotated with the findings that point at
// its artifact type.
type Step struct {
	models.ExecutionStep
	// Findings lists the findings whose target is this step's type.
	Findings []models.Finding `json:"findings,omitempty"`
}

// Result is the full execution plan for one feature.
type Result struct {
	// FeatureID names the feature the plan covers.
	FeatureID string `json:"feature_id"`
	// Status is the aggregate validation outcome.
	Status models.Status `json:"status"`
	// Steps is the ordered plan with per-step findings attached.
	Steps []Step `json:"steps"`
	// Findings is the complete flat finding list, in validation order.
	Findings []models.Finding `json:"findings"`
	// Unattached lists findings whose target type has no step in the
	// plan, so nothing silently drops.
	Unattached []models.Finding `json:"unattached,omitempty"`
	// GeneratedAt records when the plan was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// Planner builds execution plans. Checkpoint text comes from the rules
// when overridden, otherwise from the built-in defaults.
type Planner struct {
	rules *config.CoherenceRules
}

// NewPlanner creates a planner over the given rules.
func NewPlanner(rules *config.CoherenceRules) *Planner {
	return &Planner{rules: rules}
}

// Orchestrate attaches checkpoints to each step and distributes findings
// to the steps their target names. The plan content is a pure function
// of the inputs.
func (p *Planner) Orchestrate(featureID string, order []models.ExecutionStep, findings []models.Finding) *Result {
	res := &Result{
		FeatureID:   featureID,
		Status:      models.AggregateStatus(findings),
		Findings:    findings,
		GeneratedAt: time.Now().UTC(),
	}

	present := make(map[models.ArtifactType]bool, len(order))
	for _, es := range order {
		present[es.Type] = true
	}

	byTarget := make(map[models.ArtifactType][]models.Finding)
	for _, f := range findings {
		if present[f.Target] {
			byTarget[f.Target] = append(byTarget[f.Target], f)
			continue
		}
		res.Unattached = append(res.Unattached, f)
	}

	for _, es := range order {
		es.Checkpoint = p.checkpointFor(es.Type)
		res.Steps = append(res.Steps, Step{
			ExecutionStep: es,
			Findings:      byTarget[es.Type],
		})
	}

	return res
}

func (p *Planner) checkpointFor(t models.ArtifactType) string {
	if p.rules != nil {
		if text, ok := p.rules.CheckpointFor(t); ok {
			return text
		}
	}
	return defaultCheckpoints[t]
}
