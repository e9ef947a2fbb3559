package coherence

import (
	"context"
	"fmt"
	"sync"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

// Checker validates an artifact set against the configured coherence
// rules. Pairs run concurrently on a bounded pool; results merge in
// execution order, so output is identical regardless of scheduling.
type Checker struct {
	rules   *config.CoherenceRules
	workers int
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewChecker creates a checker. workers bounds how many adjacent pairs
// validate concurrently; values below one mean serial.
func NewChecker(rules *config.CoherenceRules, workers int) *Checker {
	if workers < 1 {
		workers = 1
	}
	return &Checker{
		rules:    rules,
		workers:  workers,
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (c *Checker) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Validate runs the check families over every adjacent pair of the
// execution order. Findings come back ordered: incomplete-extraction
// notices in step order first, then per-pair findings in step order with
// families in fixed order inside each pair.
func (c *Checker) Validate(ctx context.Context, artifacts map[models.ArtifactType]*models.Artifact, order []models.ExecutionStep) ([]models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validation cancelled: %w", err)
	}

	var findings []models.Finding

	for _, step := range order {
		art := artifacts[step.Type]
		if art == nil {
			return nil, fmt.Errorf("artifact %s named in order but missing from set", step.Type)
		}
		if art.FactsIncomplete {
			findings = append(findings, models.Finding{
				Severity: models.SeverityInfo,
				Code:     models.CodeIncompleteExtraction,
				Source:   step.Type,
				Target:   step.Type,
				Message:  "document loaded without recognizable structure; cross-checks against it are downgraded",
			})
		}
	}

	pairs := len(order) - 1
	if pairs < 1 {
		return findings, nil
	}

	workers := c.workers
	if workers > pairs {
		workers = pairs
	}
	c.debugLog("[coherence.Validate] %d artifacts, %d pairs, %d workers", len(order), pairs, workers)

	// Each pair writes its own slot; the merge below restores order.
	results := make([][]models.Finding, pairs)
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				a := artifacts[order[i].Type]
				b := artifacts[order[i+1].Type]
				results[i] = checkPair(c.rules, a, b)
				c.debugLog("[coherence.Validate] pair %s->%s: %d findings", a.Type, b.Type, len(results[i]))
			}
		}()
	}

	var cancelled error
feed:
	for i := 0; i < pairs; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, fmt.Errorf("validation cancelled: %w", cancelled)
	}

	for _, r := range results {
		findings = append(findings, r...)
	}
	return findings, nil
}
