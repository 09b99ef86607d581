// Package engine implements the in-memory experimentation core: experiment
// registry, deterministic variant assignment, conversion tracking,
// statistical analysis and the advisory scheduler.
package engine

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// MinSampleSize is the floor below which no z-test result is called
	// significant. Default domain.DefaultMinSampleSize.
	MinSampleSize int64
	// Subjects holds session state. Default: bounded in-memory cache.
	Subjects ports.SubjectStore
	// Definitions, when set, persists experiment definitions and seeds
	// the registry on Load.
	Definitions ports.DefinitionStore
	// Metrics exports engine activity counters. Default: no-op.
	Metrics ports.MetricsExporter
}

// Engine is the transport-agnostic facade over the experimentation core.
// All five public operations are safe for concurrent use.
type Engine struct {
	registry *Registry
	assigner *Assigner
	tracker  *Tracker
	analyzer *Analyzer
	subjects ports.SubjectStore
	metrics  ports.MetricsExporter
	counters *counterArena
}

// New assembles an engine from the options.
func New(opts Options) *Engine {
	if opts.Subjects == nil {
		opts.Subjects = NewSubjectCache(DefaultSubjectCacheSize, DefaultSubjectTTL)
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	counters := newCounterArena()
	registry := NewRegistry(opts.Definitions)

	return &Engine{
		registry: registry,
		assigner: NewAssigner(registry, opts.Subjects, counters, opts.Metrics),
		tracker:  NewTracker(registry, opts.Subjects, counters, opts.Metrics),
		analyzer: NewAnalyzer(registry, counters, opts.MinSampleSize),
		subjects: opts.Subjects,
		metrics:  opts.Metrics,
		counters: counters,
	}
}

// Load seeds the registry from the definition store, when one is set.
func (e *Engine) Load(ctx context.Context) error {
	return e.registry.Load(ctx)
}

// RegisterExperiment validates and registers a new experiment definition.
func (e *Engine) RegisterExperiment(ctx context.Context, exp *domain.Experiment) error {
	return e.registry.Register(ctx, exp)
}

// SetExperimentStatus transitions an experiment's lifecycle status.
func (e *Engine) SetExperimentStatus(ctx context.Context, experimentID string, status domain.Status) error {
	return e.registry.SetStatus(ctx, experimentID, status)
}

// GetExperiment returns an experiment definition.
func (e *Engine) GetExperiment(experimentID string) (domain.Experiment, error) {
	return e.registry.Get(experimentID)
}

// ListExperiments returns all registered experiments ordered by id.
func (e *Engine) ListExperiments() []domain.Experiment {
	return e.registry.List()
}

// GetAssignment returns the subject's assignment and variant for the
// experiment, creating it on first exposure. ok is false for NoAssignment.
func (e *Engine) GetAssignment(ctx context.Context, subjectID, experimentID string) (assignment domain.Assignment, variant *domain.Variant, ok bool) {
	return e.assigner.Assign(ctx, subjectID, experimentID)
}

// TrackConversion records a conversion against the subject's assignment.
// Fire-and-forget: unattributable calls are silent no-ops.
func (e *Engine) TrackConversion(ctx context.Context, subjectID, experimentID, metric string, value float64) {
	e.tracker.Track(ctx, subjectID, experimentID, metric, value)
}

// GetResults computes per-variant results for the experiment.
func (e *Engine) GetResults(experimentID string) ([]domain.VariantResult, error) {
	return e.analyzer.Results(experimentID)
}

// IgnoredConversions returns the diagnostic counter of silently ignored
// tracking calls, keyed by reason.
func (e *Engine) IgnoredConversions() map[string]int64 {
	return e.tracker.IgnoredConversions()
}

// Registry exposes the registry to the scheduler wiring.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Analyzer exposes the analyzer to the scheduler wiring.
func (e *Engine) Analyzer() *Analyzer {
	return e.analyzer
}

// noopMetrics is the default exporter when metrics are disabled.
type noopMetrics struct{}

func (noopMetrics) RecordAssignment(ctx context.Context, experimentID, variantID string) {}
func (noopMetrics) RecordConversion(ctx context.Context, experimentID, variantID, metric string, value float64) {
}
func (noopMetrics) RecordIgnoredConversion(ctx context.Context, reason string)     {}
func (noopMetrics) RecordFlag(ctx context.Context, experimentID, variantID string) {}
func (noopMetrics) Close(ctx context.Context) error                                { return nil }
