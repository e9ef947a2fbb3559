package orchestrate

import (
	"testing"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

func order(types ...models.ArtifactType) []models.ExecutionStep {
	var out []models.ExecutionStep
	for i, t := range types {
		out = append(out, models.ExecutionStep{Ordinal: i + 1, Type: t})
	}
	return out
}

func TestOrchestrateAttachesCheckpoints(t *testing.T) {
	p := NewPlanner(config.DefaultRules())

	res := p.Orchestrate("user-auth", order(models.ArtifactSchema, models.ArtifactContract), nil)

	if res.FeatureID != "user-auth" {
		t.Errorf("FeatureID = %q, want user-auth", res.FeatureID)
	}
	if res.Status != models.StatusPass {
		t.Errorf("Status = %s, want PASS", res.Status)
	}
	if len(res.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(res.Steps))
	}
	for _, s := range res.Steps {
		if s.Checkpoint == "" {
			t.Errorf("step %s has no checkpoint", s.Type)
		}
	}
	if res.Steps[0].Checkpoint != "migrations applied and schema re-readable" {
		t.Errorf("schema checkpoint = %q", res.Steps[0].Checkpoint)
	}
}

func TestOrchestrateCheckpointOverride(t *testing.T) {
	rules := config.DefaultRules()
	rules.Checkpoints["schema"] = "staging database migrated"
	p := NewPlanner(rules)

	res := p.Orchestrate("user-auth", order(models.ArtifactSchema), nil)

	if res.Steps[0].Checkpoint != "staging database migrated" {
		t.Errorf("Checkpoint = %q, want override", res.Steps[0].Checkpoint)
	}
}

func TestOrchestrateDistributesFindingsByTarget(t *testing.T) {
	findings := []models.Finding{
		{
			Severity: models.SeverityWarning,
			Code:     models.CodeNamingMismatch,
			Source:   models.ArtifactContract,
			Target:   models.ArtifactSchema,
			Field:    "userId",
			Message:  "naming drift",
		},
		{
			Severity: models.SeverityError,
			Code:     models.CodeTypeMismatch,
			Source:   models.ArtifactLogic,
			Target:   models.ArtifactContract,
			Field:    "user_identifier",
			Message:  "type drift",
		},
	}
	p := NewPlanner(config.DefaultRules())

	res := p.Orchestrate("user-auth", order(models.ArtifactSchema, models.ArtifactContract, models.ArtifactLogic), findings)

	if res.Status != models.StatusFail {
		t.Errorf("Status = %s, want FAIL", res.Status)
	}
	if n := len(res.Steps[0].Findings); n != 1 {
		t.Errorf("schema step has %d findings, want 1", n)
	}
	if n := len(res.Steps[1].Findings); n != 1 {
		t.Errorf("contract step has %d findings, want 1", n)
	}
	if n := len(res.Steps[2].Findings); n != 0 {
		t.Errorf("logic step has %d findings, want 0", n)
	}
	if len(res.Unattached) != 0 {
		t.Errorf("Unattached = %v, want none", res.Unattached)
	}
	if len(res.Findings) != 2 {
		t.Errorf("flat list has %d findings, want 2", len(res.Findings))
	}
}

func TestOrchestrateCarriesUnattached(t *testing.T) {
	findings := []models.Finding{
		{
			Severity: models.SeverityWarning,
			Code:     models.CodeBrokenReference,
			Source:   models.ArtifactPresentation,
			Target:   models.ArtifactComponents,
			Field:    "Ghost",
			Message:  "no definition",
		},
	}
	p := NewPlanner(config.DefaultRules())

	// Components has no step, so the finding must surface as unattached.
	res := p.Orchestrate("user-auth", order(models.ArtifactSchema, models.ArtifactPresentation), findings)

	if len(res.Unattached) != 1 {
		t.Fatalf("Unattached = %v, want 1 entry", res.Unattached)
	}
	if res.Unattached[0].Field != "Ghost" {
		t.Errorf("Unattached[0].Field = %q, want Ghost", res.Unattached[0].Field)
	}
	for _, s := range res.Steps {
		if len(s.Findings) != 0 {
			t.Errorf("step %s unexpectedly has findings", s.Type)
		}
	}
}

func TestOrchestratePlanContentDeterministic(t *testing.T) {
	p := NewPlanner(config.DefaultRules())
	findings := []models.Finding{
		{
			Severity: models.SeverityWarning,
			Code:     models.CodeNamingMismatch,
			Source:   models.ArtifactContract,
			Target:   models.ArtifactSchema,
			Field:    "userId",
			Message:  "naming drift",
		},
	}

	a := p.Orchestrate("f", order(models.ArtifactSchema, models.ArtifactContract), findings)
	b := p.Orchestrate("f", order(models.ArtifactSchema, models.ArtifactContract), findings)

	if a.Status != b.Status || len(a.Steps) != len(b.Steps) {
		t.Fatal("repeated Orchestrate calls disagree on plan shape")
	}
	for i := range a.Steps {
		if a.Steps[i].Type != b.Steps[i].Type || a.Steps[i].Checkpoint != b.Steps[i].Checkpoint {
			t.Errorf("step %d differs between runs", i)
		}
		if len(a.Steps[i].Findings) != len(b.Steps[i].Findings) {
			t.Errorf("step %d finding count differs", i)
		}
	}
}
