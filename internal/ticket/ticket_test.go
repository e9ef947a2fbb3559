package ticket

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/planvet/planvet/internal/session"
	"github.com/planvet/planvet/pkg/models"
)

func sampleReport() *session.EscalationReport {
	recurring := models.Finding{
		Severity: models.SeverityError,
		Code:     models.CodeTypeMismatch,
		Source:   models.ArtifactLogic,
		Target:   models.ArtifactContract,
		Field:    "user_identifier",
		Message:  "declared int here but string upstream",
	}
	return &session.EscalationReport{
		FeatureID:     "user-auth",
		Iterations:    3,
		MaxIterations: 3,
		History: []session.IterationRecord{
			{Iteration: 1, Status: models.StatusFail, Findings: []models.Finding{recurring}},
			{Iteration: 2, Status: models.StatusFail, Findings: []models.Finding{recurring}},
			{Iteration: 3, Status: models.StatusFail, Findings: []models.Finding{recurring}},
		},
		PersistentIssues: []session.PersistentIssue{
			{Signature: recurring.Signature(), Count: 3, Example: recurring},
		},
	}
}

func TestDirSinkFilesTicket(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tickets")
	sink := NewDirSink(dir)

	path, err := sink.FileTicket(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("FileTicket() error = %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("ticket path %q not under %q", path, dir)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "user-auth-") || !strings.HasSuffix(base, ".md") {
		t.Errorf("ticket name = %q, want user-auth-<id>.md", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading ticket: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"# Escalation: user-auth",
		"Iterations: 3 of 3",
		"## Persistent Issues",
		"`logic|user_identifier|type_mismatch` in 3 of 3 iterations",
		"## Iteration History",
		"### Iteration 1: FAIL",
		"### Iteration 3: FAIL",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("ticket missing %q", want)
		}
	}

	// Persistent issues must come before the pass-by-pass history.
	if strings.Index(content, "## Persistent Issues") > strings.Index(content, "## Iteration History") {
		t.Error("persistent issues rendered after iteration history")
	}
}

func TestDirSinkUniqueNames(t *testing.T) {
	sink := NewDirSink(t.TempDir())
	ctx := context.Background()

	first, err := sink.FileTicket(ctx, sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	second, err := sink.FileTicket(ctx, sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("two tickets share the path %q", first)
	}
}

func TestDirSinkSanitizesFeatureID(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir)
	rep := sampleReport()
	rep.FeatureID = "auth/login flow"

	path, err := sink.FileTicket(context.Background(), rep)
	if err != nil {
		t.Fatalf("FileTicket() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("ticket escaped the sink directory: %q", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "auth-login-flow-") {
		t.Errorf("ticket name = %q, want sanitized auth-login-flow prefix", filepath.Base(path))
	}
}

func TestDirSinkCancelled(t *testing.T) {
	sink := NewDirSink(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sink.FileTicket(ctx, sampleReport()); !errors.Is(err, context.Canceled) {
		t.Errorf("FileTicket() error = %v, want context.Canceled", err)
	}
}

func TestRenderNoPersistentIssues(t *testing.T) {
	rep := sampleReport()
	rep.PersistentIssues = nil

	content := Render(rep)
	if !strings.Contains(content, "None recurred") {
		t.Error("render of a report without persistent issues missing the explanatory line")
	}
}

func TestNopSink(t *testing.T) {
	path, err := NopSink{}.FileTicket(context.Background(), sampleReport())
	if err != nil {
		t.Errorf("NopSink.FileTicket error = %v", err)
	}
	if path != "" {
		t.Errorf("NopSink.FileTicket path = %q, want empty", path)
	}
}
