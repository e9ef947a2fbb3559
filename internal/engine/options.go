// Package engine wires artifact discovery, ordering, coherence checks,
// orchestration and synthesis into the operations the CLI exposes.
package engine

import (
	"time"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/metrics"
	"github.com/planvet/planvet/internal/ticket"
)

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional configuration.
type engineOptions struct {
	rules    *config.CoherenceRules
	metrics  metrics.Sink
	tickets  ticket.Sink
	debugLog func(format string, args ...interface{})
	clock    func() time.Time
}

// WithRules overrides the coherence policy instead of loading the
// configured rules file.
func WithRules(r *config.CoherenceRules) Option {
	return func(o *engineOptions) { o.rules = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.Sink) Option {
	return func(o *engineOptions) { o.metrics = s }
}

// WithTickets sets the escalation ticket sink.
func WithTickets(s ticket.Sink) Option {
	return func(o *engineOptions) { o.tickets = s }
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(o *engineOptions) { o.debugLog = fn }
}

// WithClock sets the time source (mainly for testing).
func WithClock(fn func() time.Time) Option {
	return func(o *engineOptions) { o.clock = fn }
}
