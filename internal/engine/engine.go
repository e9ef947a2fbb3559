package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/planvet/planvet/internal/artifact"
	"github.com/planvet/planvet/internal/coherence"
	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/graph"
	"github.com/planvet/planvet/internal/index"
	"github.com/planvet/planvet/internal/metrics"
	"github.com/planvet/planvet/internal/orchestrate"
	"github.com/planvet/planvet/internal/session"
	"github.com/planvet/planvet/internal/synthesis"
	"github.com/planvet/planvet/internal/ticket"
	"github.com/planvet/planvet/pkg/models"
)

// Engine coordinates one project's validation workflow.
// It wires together: store -> graph -> checker -> planner -> synthesizer,
// plus the session store and the optional metrics and ticket sinks.
type Engine struct {
	cfg      *config.Config
	store    *artifact.Store
	builder  *graph.Builder
	checker  *coherence.Checker
	planner  *orchestrate.Planner
	synth    *synthesis.Synthesizer
	cache    *index.Cache
	sessions *session.Store
	metrics  metrics.Sink
	tickets  ticket.Sink

	clock    func() time.Time
	debugLog func(format string, args ...interface{})
	// logger is owned by the engine when file debug logging is active.
	logger *DebugLogger
}

// New creates an Engine over the given configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		cfg:      cfg,
		clock:    o.clock,
		debugLog: o.debugLog,
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.debugLog == nil {
		e.logger = NewDebugLoggerForConfig(cfg)
		e.debugLog = e.logger.Log
	}

	rules := o.rules
	if rules == nil {
		var err error
		rules, err = config.LoadRules(cfg.RulesPath())
		if err != nil {
			return nil, err
		}
	}

	builder, err := graph.NewBuilder()
	if err != nil {
		return nil, err
	}
	builder.SetDebugLog(e.debugLog)
	e.builder = builder

	e.store = artifact.NewStore(cfg)
	e.store.SetDebugLog(e.debugLog)
	e.checker = coherence.NewChecker(rules, cfg.Concurrency.PairWorkers)
	e.checker.SetDebugLog(e.debugLog)
	e.planner = orchestrate.NewPlanner(rules)
	e.synth = synthesis.NewSynthesizer(cfg)
	e.cache = index.NewCache(cfg)
	e.sessions = session.NewStore(cfg)
	e.sessions.SetDebugLog(e.debugLog)

	e.metrics = o.metrics
	if e.metrics == nil {
		e.metrics = openMetrics(cfg, e.debugLog)
	}
	e.tickets = o.tickets
	if e.tickets == nil {
		e.tickets = openTickets(cfg, e.debugLog)
	}

	return e, nil
}

// openMetrics opens the configured metrics database. Disabled metrics or
// a failed open fall back to the no-op sink; run recording is never a
// reason to abort validation.
func openMetrics(cfg *config.Config, debugLog func(format string, args ...interface{})) metrics.Sink {
	if !cfg.Metrics.Enabled {
		return metrics.NopSink{}
	}
	sink, err := metrics.Open(cfg.MetricsPath())
	if err != nil {
		debugLog("[engine.New] metrics sink unavailable: %v", err)
		return metrics.NopSink{}
	}
	return sink
}

// openTickets builds the configured ticket sink.
func openTickets(cfg *config.Config, debugLog func(format string, args ...interface{})) ticket.Sink {
	if !cfg.Tickets.Enabled {
		return ticket.NopSink{}
	}
	sink := ticket.NewDirSink(cfg.TicketsDir())
	sink.SetDebugLog(debugLog)
	return sink
}

// Close releases the metrics sink and the engine's log file.
func (e *Engine) Close() error {
	err := e.metrics.Close()
	if cerr := e.logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// Run is the outcome of one read-only validation pass.
type Run struct {
	// RunID uniquely identifies the pass.
	RunID string `json:"run_id"`
	// FeatureID names the validated feature.
	FeatureID string `json:"feature_id"`
	// Status is the aggregate outcome.
	Status models.Status `json:"status"`
	// Order is the execution order validation walked.
	Order []models.ExecutionStep `json:"order"`
	// Findings is the merged finding list in deterministic order.
	Findings []models.Finding `json:"findings"`
	// Artifacts holds the loaded artifacts by type.
	Artifacts map[models.ArtifactType]*models.Artifact `json:"-"`
	// StaleRules lists governance files that drifted from the index since
	// it was last built. Advisory; absent when no index file exists.
	StaleRules []index.Staleness `json:"stale_rules,omitempty"`
	// Duration is the wall-clock pass time.
	Duration time.Duration `json:"duration"`
}

// Inspect runs the read-only path: index staleness, artifact discovery
// and load, execution ordering, pairwise coherence checks, aggregation.
// It never touches the session.
func (e *Engine) Inspect(ctx context.Context, featureID string) (*Run, error) {
	start := e.clock()
	run := &Run{
		RunID:     uuid.New().String()[:8],
		FeatureID: featureID,
	}
	e.debugLog("[engine.Inspect] run %s for feature %s", run.RunID, featureID)

	// A project without a governance index skips the staleness check.
	if idx, err := e.cache.Load(); err == nil {
		stale, verr := e.cache.Validate(ctx, idx)
		if verr != nil {
			return nil, fmt.Errorf("verify governance index: %w", verr)
		}
		run.StaleRules = stale
	} else if !errors.Is(err, os.ErrNotExist) {
		e.debugLog("[engine.Inspect] unreadable index, skipping staleness check: %v", err)
	}

	refs, err := e.store.Discover(featureID)
	if err != nil {
		return nil, err
	}
	artifacts, err := e.store.LoadAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	present := make([]models.ArtifactType, 0, len(refs))
	for _, ref := range refs {
		present = append(present, ref.Type)
	}
	order, err := e.builder.BuildOrder(present)
	if err != nil {
		return nil, err
	}

	findings, err := e.checker.Validate(ctx, artifacts, order)
	if err != nil {
		return nil, err
	}

	run.Order = order
	run.Artifacts = artifacts
	run.Findings = findings
	run.Status = models.AggregateStatus(findings)
	run.Duration = e.clock().Sub(start)
	e.debugLog("[engine.Inspect] run %s: %s with %d findings in %s",
		run.RunID, run.Status, len(run.Findings), run.Duration)
	return run, nil
}

// ValidateOptions tune one validate invocation.
type ValidateOptions struct {
	// Strict treats a WARNINGS outcome as needing another iteration. The
	// configured default applies on top.
	Strict bool
	// MaxIterations overrides the configured budget when this run opens a
	// new session. Zero keeps the configured value; a resumed session
	// keeps the budget it started with.
	MaxIterations int
}

// ValidateResult couples a run with the session transition it caused.
type ValidateResult struct {
	Run      *Run
	Session  *session.Session
	Decision session.Decision
	// TicketPath is where the escalation ticket was filed, when one was.
	TicketPath string
}

// Validate runs Inspect and advances the feature's session under its
// lock, recording the run and filing an escalation ticket when the
// iteration budget runs out. Cancellation between validation and the
// session write discards the findings without moving the iteration
// counter.
func (e *Engine) Validate(ctx context.Context, featureID string, opts ValidateOptions) (*ValidateResult, error) {
	run, err := e.Inspect(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strict := opts.Strict || e.cfg.Defaults.Strict

	var dec session.Decision
	sess, err := e.sessions.Mutate(ctx, featureID, func(s *session.Session) error {
		if len(s.History) == 0 && opts.MaxIterations > 0 {
			s.MaxIterations = opts.MaxIterations
		}
		dec = session.Advance(s, run.Status, run.Findings, strict)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordRun(ctx, run, sess)

	res := &ValidateResult{Run: run, Session: sess, Decision: dec}
	if dec.Kind == session.DecisionEscalate {
		path, terr := e.tickets.FileTicket(ctx, dec.Report)
		if terr != nil {
			e.debugLog("[engine.Validate] ticket not filed: %v", terr)
		} else {
			res.TicketPath = path
		}
	}
	return res, nil
}

// recordRun persists run metrics. Failures are logged, never fatal.
func (e *Engine) recordRun(ctx context.Context, run *Run, sess *session.Session) {
	iteration := 0
	if n := len(sess.History); n > 0 {
		iteration = sess.History[n-1].Iteration
	}
	errs, warns, infos := models.CountBySeverity(run.Findings)
	rec := metrics.RunMetrics{
		FeatureID: run.FeatureID,
		RunID:     run.RunID,
		Status:    run.Status,
		Iteration: iteration,
		Errors:    errs,
		Warnings:  warns,
		Infos:     infos,
		Duration:  run.Duration,
		CreatedAt: e.clock().UTC(),
	}
	if err := e.metrics.RecordRun(ctx, rec); err != nil {
		e.debugLog("[engine.Validate] run %s not recorded: %v", run.RunID, err)
	}
}

// Orchestrate runs the read path and assembles the execution plan.
func (e *Engine) Orchestrate(ctx context.Context, featureID string) (*orchestrate.Result, error) {
	run, err := e.Inspect(ctx, featureID)
	if err != nil {
		return nil, err
	}
	return e.planner.Orchestrate(featureID, run.Order, run.Findings), nil
}

// Synthesize orchestrates and renders the implementation plan document,
// persisting it into the feature's artifact directory. A failed write is
// reported on the document, not as an error, so the markdown can still
// be printed.
func (e *Engine) Synthesize(ctx context.Context, featureID string) (*synthesis.Document, error) {
	run, err := e.Inspect(ctx, featureID)
	if err != nil {
		return nil, err
	}
	res := e.planner.Orchestrate(featureID, run.Order, run.Findings)
	doc := e.synth.Synthesize(res, run.Artifacts)
	return e.synth.Write(doc), nil
}

// Reindex rebuilds and persists the governance index.
func (e *Engine) Reindex(ctx context.Context) (*index.Index, []string, error) {
	return e.cache.Rebuild(ctx)
}

// VerifyIndex reports drift between the persisted index and the live
// tree. A missing index file is an error here: there is nothing to
// verify against.
func (e *Engine) VerifyIndex(ctx context.Context) ([]index.Staleness, error) {
	idx, err := e.cache.Load()
	if err != nil {
		return nil, err
	}
	return e.cache.Validate(ctx, idx)
}

// IndexCache exposes the governance index cache. The watch mode of the
// reindex command drives rebuilds through it.
func (e *Engine) IndexCache() *index.Cache {
	return e.cache
}

// StatusReport is the session state and run history for one feature.
type StatusReport struct {
	// Session is the current session, nil when none was ever started.
	Session *session.Session
	// Runs is recent run history, newest first.
	Runs []metrics.RunMetrics
}

// Status reads a feature's session and recent runs. Both parts are
// optional: a feature can have runs without a session and vice versa.
func (e *Engine) Status(ctx context.Context, featureID string) (*StatusReport, error) {
	report := &StatusReport{}

	sess, err := e.sessions.Load(featureID)
	switch {
	case err == nil:
		report.Session = sess
	case errors.Is(err, session.ErrNotFound):
	default:
		return nil, err
	}

	runs, err := e.metrics.RecentRuns(ctx, featureID, 5)
	if err != nil {
		e.debugLog("[engine.Status] run history unavailable: %v", err)
	} else {
		report.Runs = runs
	}
	return report, nil
}
