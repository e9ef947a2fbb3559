// Package ticket files escalation reports as markdown for human review.
// Filing is an optional capability; when disabled the engine uses the
// no-op sink and escalation still surfaces through the command output.
package ticket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planvet/planvet/internal/fsio"
	"github.com/planvet/planvet/internal/session"
)

// Sink files escalation reports somewhere a reviewer will find them.
type Sink interface {
	// FileTicket persists the report and returns its location. A no-op
	// sink returns an empty location.
	FileTicket(ctx context.Context, report *session.EscalationReport) (string, error)
}

// NopSink discards reports.
type NopSink struct{}

// FileTicket discards the report.
func (NopSink) FileTicket(ctx context.Context, report *session.EscalationReport) (string, error) {
	return "", nil
}

// DirSink writes one markdown ticket per escalation into a directory.
type DirSink struct {
	dir string

	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewDirSink creates a sink writing tickets into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{
		dir:      dir,
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (d *DirSink) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		d.debugLog = fn
	}
}

// FileTicket renders the report and writes it to
// <dir>/<feature>-<shortid>.md atomically.
func (d *DirSink) FileTicket(ctx context.Context, report *session.EscalationReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create ticket directory: %w", err)
	}

	id := uuid.New().String()[:8]
	path := filepath.Join(d.dir, fmt.Sprintf("%s-%s.md", safeName(report.FeatureID), id))

	if err := fsio.WriteFileAtomic(path, []byte(Render(report)), 0644); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	d.debugLog("[ticket.FileTicket] filed %s", path)
	return path, nil
}

// safeName maps a feature ID onto a safe file name fragment.
func safeName(featureID string) string {
	var b strings.Builder
	for _, r := range featureID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// Render produces the ticket markdown. Persistent issues lead so the
// reviewer sees what kept failing before reading pass-by-pass history.
func Render(report *session.EscalationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Escalation: %s\n\n", report.FeatureID)
	fmt.Fprintf(&b, "- Filed: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Iterations: %d of %d\n\n", report.Iterations, report.MaxIterations)

	b.WriteString("## Persistent Issues\n\n")
	if len(report.PersistentIssues) == 0 {
		b.WriteString("None recurred; every iteration failed on different findings.\n")
	} else {
		for _, issue := range report.PersistentIssues {
			fmt.Fprintf(&b, "- `%s` in %d of %d iterations\n", issue.Signature, issue.Count, report.Iterations)
			fmt.Fprintf(&b, "  - %s\n", issue.Example.String())
		}
	}
	b.WriteString("\n## Iteration History\n")

	for _, rec := range report.History {
		fmt.Fprintf(&b, "\n### Iteration %d: %s\n\n", rec.Iteration, rec.Status)
		if len(rec.Findings) == 0 {
			b.WriteString("No findings.\n")
			continue
		}
		for _, f := range rec.Findings {
			fmt.Fprintf(&b, "- %s\n", f.String())
		}
	}

	return b.String()
}

// Compile-time verification that both sinks implement the interface.
var (
	_ Sink = (*DirSink)(nil)
	_ Sink = NopSink{}
)
