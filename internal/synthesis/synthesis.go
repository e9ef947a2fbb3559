// Package synthesis renders one consolidated implementation plan from an
// orchestration result. Writing the plan is the only side effect in the
// engine's read path; a failed write degrades to returning the rendered
// text rather than dropping it.
package synthesis

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/fsio"
	"github.com/planvet/planvet/internal/orchestrate"
	"github.com/planvet/planvet/pkg/models"
)

// PlanFileName is the consolidated document's file name inside the
// feature's plan directory.
const PlanFileName = "implementation_plan.md"

// Document is a rendered plan plus the outcome of persisting it.
type Document struct {
	// FeatureID names the feature the document covers.
	FeatureID string
	// Markdown is the full rendered text.
	Markdown string
	// Path is the target location the document belongs at.
	Path string
	// Written reports whether the document reached disk.
	Written bool
	// WriteErr holds the write failure when Written is false.
	WriteErr error
}

// Synthesizer renders and persists consolidated plan documents.
type Synthesizer struct {
	cfg *config.Config
}

// NewSynthesizer creates a synthesizer writing under the configured
// plans directory.
func NewSynthesizer(cfg *config.Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Synthesize renders the result into one markdown document. Pure; the
// caller decides whether to persist via Write.
func (s *Synthesizer) Synthesize(res *orchestrate.Result, artifacts map[models.ArtifactType]*models.Artifact) *Document {
	var b strings.Builder

	fmt.Fprintf(&b, "# Implementation Plan: %s\n\n", res.FeatureID)
	fmt.Fprintf(&b, "- Status: **%s**\n", res.Status)
	fmt.Fprintf(&b, "- Generated: %s\n", res.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Steps: %d\n", len(res.Steps))
	errs, warns, infos := models.CountBySeverity(res.Findings)
	fmt.Fprintf(&b, "- Findings: %d error(s), %d warning(s), %d info\n\n", errs, warns, infos)

	b.WriteString("## Execution Order\n\n")
	b.WriteString("| # | Artifact | Depends On | Checkpoint |\n")
	b.WriteString("|---|----------|------------|------------|\n")
	for _, step := range res.Steps {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			step.Ordinal, step.Type.DisplayName(), dependsOnCell(step.DependsOn), step.Checkpoint)
	}
	b.WriteString("\n")

	b.WriteString("## Findings\n\n")
	if len(res.Findings) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Severity | Code | Artifacts | Field | Message |\n")
		b.WriteString("|----------|------|-----------|-------|--------|\n")
		for _, f := range res.Findings {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				strings.ToUpper(string(f.Severity)), f.Code, artifactsCell(f), tableCell(f.Field), tableCell(f.Message))
		}
		b.WriteString("\n")
	}
	if len(res.Unattached) > 0 {
		b.WriteString("### Not attached to any step\n\n")
		for _, f := range res.Unattached {
			fmt.Fprintf(&b, "- %s\n", f.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("## Steps\n\n")
	for _, step := range res.Steps {
		fmt.Fprintf(&b, "### %d. %s\n\n", step.Ordinal, step.Type.DisplayName())
		fmt.Fprintf(&b, "Checkpoint: %s\n\n", step.Checkpoint)
		if len(step.Findings) > 0 {
			b.WriteString("Resolve before advancing:\n\n")
			for _, f := range step.Findings {
				fmt.Fprintf(&b, "- %s\n", f.String())
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Source Artifacts\n\n")
	for _, t := range sortedTypes(artifacts) {
		fmt.Fprintf(&b, "- %s: `%s`\n", t.DisplayName(), artifacts[t].Path)
	}

	return &Document{
		FeatureID: res.FeatureID,
		Markdown:  b.String(),
		Path:      filepath.Join(s.cfg.FeatureDir(res.FeatureID), PlanFileName),
	}
}

// Write persists the document atomically. Failure is recorded on the
// document, not returned as a hard error: the rendered text is the
// fallback and the caller decides how to surface it.
func (s *Synthesizer) Write(doc *Document) *Document {
	if err := fsio.WriteFileAtomic(doc.Path, []byte(doc.Markdown), 0644); err != nil {
		doc.Written = false
		doc.WriteErr = fmt.Errorf("write plan document: %w", err)
		return doc
	}
	doc.Written = true
	doc.WriteErr = nil
	return doc
}

func dependsOnCell(deps []models.ArtifactType) string {
	if len(deps) == 0 {
		return "-"
	}
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

func artifactsCell(f models.Finding) string {
	if f.Target == "" || f.Target == f.Source {
		return string(f.Source)
	}
	return fmt.Sprintf("%s -> %s", f.Source, f.Target)
}

// tableCell escapes pipe characters so free text cannot break the
// markdown table.
func tableCell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

func sortedTypes(artifacts map[models.ArtifactType]*models.Artifact) []models.ArtifactType {
	types := make([]models.ArtifactType, 0, len(artifacts))
	for t := range artifacts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].Priority() < types[j].Priority()
	})
	return types
}
