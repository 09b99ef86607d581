package engine

import (
	"context"
	"sync"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Reasons a conversion call is silently ignored. These feed the diagnostic
// counter only; callers never see them.
const (
	ignoredUnknownSubject    = "unknown_subject"
	ignoredNoAssignment      = "no_assignment"
	ignoredUnknownExperiment = "unknown_experiment"
	ignoredUnknownMetric     = "unknown_metric"
)

// Tracker records conversion events against existing assignments. Calls
// that cannot be attributed (no prior exposure, experiment does not declare
// the metric) are deliberate no-ops, not errors: call sites cannot always
// know which experiments are active. An internal counter of ignored calls
// is kept for observability without changing that contract.
type Tracker struct {
	registry *Registry
	subjects ports.SubjectStore
	counters *counterArena
	metrics  ports.MetricsExporter

	ignoredMu sync.Mutex
	ignored   map[string]int64
}

// NewTracker wires a tracker over the shared registry, subject store and
// counter arena.
func NewTracker(registry *Registry, subjects ports.SubjectStore, counters *counterArena, metrics ports.MetricsExporter) *Tracker {
	return &Tracker{
		registry: registry,
		subjects: subjects,
		counters: counters,
		metrics:  metrics,
		ignored:  make(map[string]int64),
	}
}

// Track attributes value to the variant the subject is assigned for the
// experiment, and appends the event to the subject's conversion log.
// Fire-and-forget: there is nothing to return and nothing to surface.
func (t *Tracker) Track(ctx context.Context, subjectID, experimentID, metric string, value float64) {
	handle := t.subjects.Get(subjectID)
	if handle == nil {
		t.ignore(ctx, ignoredUnknownSubject)
		return
	}

	handle.Lock()
	defer handle.Unlock()

	assignment, ok := handle.Subject.Assignments[experimentID]
	if !ok {
		// A conversion cannot be attributed without prior exposure.
		t.ignore(ctx, ignoredNoAssignment)
		return
	}

	exp, err := t.registry.Get(experimentID)
	if err != nil {
		t.ignore(ctx, ignoredUnknownExperiment)
		return
	}
	if !exp.TracksMetric(metric) {
		t.ignore(ctx, ignoredUnknownMetric)
		return
	}

	t.counters.forExperiment(experimentID).addConversion(assignment.VariantID, value)
	handle.Subject.Conversions = append(handle.Subject.Conversions, domain.ConversionEvent{
		ExperimentID: experimentID,
		Metric:       metric,
		Value:        value,
		Timestamp:    time.Now().UTC(),
	})
	t.metrics.RecordConversion(ctx, experimentID, assignment.VariantID, metric, value)
}

func (t *Tracker) ignore(ctx context.Context, reason string) {
	t.ignoredMu.Lock()
	t.ignored[reason]++
	t.ignoredMu.Unlock()
	t.metrics.RecordIgnoredConversion(ctx, reason)
}

// IgnoredConversions returns a copy of the diagnostic counter of silently
// ignored tracking calls, keyed by reason.
func (t *Tracker) IgnoredConversions() map[string]int64 {
	t.ignoredMu.Lock()
	defer t.ignoredMu.Unlock()
	out := make(map[string]int64, len(t.ignored))
	for reason, n := range t.ignored {
		out[reason] = n
	}
	return out
}
