// Package graph orders artifact types for execution. The dependency
// graph is static and type-level: edges relate artifact types, never
// individual documents, and the edge table is fixed at build time.
package graph

import (
	"errors"
	"fmt"

	"github.com/planvet/planvet/pkg/models"
)

// ErrCycleDetected indicates the static edge table is miswired. It can
// only surface from builder construction, never from a per-run call.
var ErrCycleDetected = errors.New("circular dependency detected")

// Edge is one directed dependency between artifact types: To cannot be
// acted on before From.
type Edge struct {
	From models.ArtifactType `json:"from"`
	To   models.ArtifactType `json:"to"`
}

// DefaultEdges returns the static edge chain: each artifact type builds
// on the one before it in priority order.
func DefaultEdges() []Edge {
	return []Edge{
		{From: models.ArtifactSchema, To: models.ArtifactContract},
		{From: models.ArtifactContract, To: models.ArtifactLogic},
		{From: models.ArtifactLogic, To: models.ArtifactPresentation},
		{From: models.ArtifactPresentation, To: models.ArtifactComponents},
	}
}

// Builder produces deterministic execution orders over the subset of
// artifact types present for a feature.
type Builder struct {
	// deps maps a type to the types it depends on (is blocked by).
	deps map[models.ArtifactType][]models.ArtifactType
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewBuilder creates a builder over the default static edge table.
func NewBuilder() (*Builder, error) {
	return NewBuilderWithEdges(DefaultEdges())
}

// NewBuilderWithEdges creates a builder over an explicit edge table and
// verifies it is acyclic. A cycle is a programming defect, so it fails
// construction rather than a later run.
func NewBuilderWithEdges(edges []Edge) (*Builder, error) {
	b := &Builder{
		deps:     make(map[models.ArtifactType][]models.ArtifactType),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}

	for _, e := range edges {
		if !e.From.Valid() {
			return nil, fmt.Errorf("edge from unknown artifact type %q", e.From)
		}
		if !e.To.Valid() {
			return nil, fmt.Errorf("edge to unknown artifact type %q", e.To)
		}
		b.deps[e.To] = append(b.deps[e.To], e.From)
	}

	if b.hasCycle() {
		return nil, ErrCycleDetected
	}
	return b, nil
}

// SetDebugLog sets the debug logging function.
func (b *Builder) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		b.debugLog = fn
	}
}

// hasCycle runs depth-first search with coloring over the full type set
// to detect back edges in the static table.
func (b *Builder) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[models.ArtifactType]int)

	var visit func(t models.ArtifactType) bool
	visit = func(t models.ArtifactType) bool {
		colors[t] = 1 // Mark as in progress.

		for _, dep := range b.deps[t] {
			switch colors[dep] {
			case 1:
				// Found a back edge.
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
			// color == 2 means already processed, skip.
		}

		colors[t] = 2 // Mark as done.
		return false
	}

	for _, t := range models.AllArtifactTypes {
		if colors[t] == 0 {
			if visit(t) {
				return true
			}
		}
	}
	return false
}

// DependsOn returns the present predecessors of a type: its direct
// dependencies restricted to the given present set.
func (b *Builder) DependsOn(t models.ArtifactType, present []models.ArtifactType) []models.ArtifactType {
	presentSet := make(map[models.ArtifactType]bool, len(present))
	for _, p := range present {
		presentSet[p] = true
	}

	var deps []models.ArtifactType
	for _, dep := range b.deps[t] {
		if presentSet[dep] {
			deps = append(deps, dep)
		}
	}
	return deps
}

// BuildOrder performs a topological sort over the static edges restricted
// to the present types. Ties always break by the fixed priority order, so
// the result is identical across runs regardless of input ordering.
// Edges from absent types drop out: any non-empty subset yields exactly
// one step per present type.
func (b *Builder) BuildOrder(present []models.ArtifactType) ([]models.ExecutionStep, error) {
	b.debugLog("[graph.BuildOrder] ordering %d present types: %v", len(present), present)

	presentSet := make(map[models.ArtifactType]bool, len(present))
	for _, t := range present {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown artifact type %q", t)
		}
		presentSet[t] = true
	}

	// Indegree over the subgraph induced by the present set.
	indegree := make(map[models.ArtifactType]int, len(presentSet))
	for t := range presentSet {
		indegree[t] = 0
		for _, dep := range b.deps[t] {
			if presentSet[dep] {
				indegree[t]++
			}
		}
	}

	var steps []models.ExecutionStep
	for len(steps) < len(indegree) {
		// Drain the ready set in priority order, never discovery order.
		next := models.ArtifactType("")
		for _, t := range models.AllArtifactTypes {
			if presentSet[t] && indegree[t] == 0 {
				next = t
				break
			}
		}
		if next == "" {
			// Unreachable with an acyclic table; construction already
			// verified it.
			return nil, ErrCycleDetected
		}

		steps = append(steps, models.ExecutionStep{
			Ordinal:   len(steps) + 1,
			Type:      next,
			DependsOn: b.DependsOn(next, present),
		})
		b.debugLog("[graph.BuildOrder] step %d: %s", len(steps), next)

		delete(presentSet, next)
		for t := range presentSet {
			for _, dep := range b.deps[t] {
				if dep == next {
					indegree[t]--
				}
			}
		}
	}

	return steps, nil
}
