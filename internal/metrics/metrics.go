// Package metrics records validation runs in a local SQLite database.
// Recording is an optional capability: when the database cannot be
// opened the engine runs with the no-op sink and loses nothing but
// history.
package metrics

import (
	"context"
	"io"
	"time"

	"github.com/planvet/planvet/pkg/models"
)

// RunMetrics is one recorded validation run.
type RunMetrics struct {
	// FeatureID names the validated feature.
	FeatureID string `json:"feature_id"`
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// Status is the aggregate validation outcome.
	Status models.Status `json:"status"`
	// Iteration is the session iteration the run executed as. Zero for
	// runs outside a session.
	Iteration int `json:"iteration"`
	// Errors, Warnings and Infos count findings by severity.
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
	// CreatedAt is when the run completed.
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, run RunMetrics) error
}

// Reader serves run history.
type Reader interface {
	// RecentRuns returns up to n runs for a feature, newest first.
	RecentRuns(ctx context.Context, featureID string, n int) ([]RunMetrics, error)
}

// Sink is the full metrics capability.
type Sink interface {
	io.Closer
	Recorder
	Reader
}

// NopSink discards everything. Used when metrics are disabled or the
// database failed to open.
type NopSink struct{}

// RecordRun discards the run.
func (NopSink) RecordRun(ctx context.Context, run RunMetrics) error { return nil }

// RecentRuns reports no history.
func (NopSink) RecentRuns(ctx context.Context, featureID string, n int) ([]RunMetrics, error) {
	return nil, nil
}

// Close is a no-op.
func (NopSink) Close() error { return nil }

// Compile-time verification that both sinks implement the interface.
var (
	_ Sink = (*SQLiteSink)(nil)
	_ Sink = NopSink{}
)
