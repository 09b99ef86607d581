package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// DefaultSchedulerInterval is how often the scheduler re-analyzes running
// experiments.
const DefaultSchedulerInterval = 60 * time.Second

// underperformRatio: a significant variant converting below this fraction
// of the control rate is flagged.
const underperformRatio = 0.8

// Scheduler periodically runs the analyzer over every running experiment
// and raises advisory UnderperformingFlags. It never mutates experiment
// state or disables a variant; acting on a flag is an operator decision.
type Scheduler struct {
	registry *Registry
	analyzer *Analyzer
	sinks    []ports.FlagSink
	metrics  ports.MetricsExporter
	interval time.Duration
}

// NewScheduler creates a scheduler delivering flags to the given sinks.
func NewScheduler(registry *Registry, analyzer *Analyzer, metrics ports.MetricsExporter, interval time.Duration, sinks ...ports.FlagSink) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		registry: registry,
		analyzer: analyzer,
		sinks:    sinks,
		metrics:  metrics,
		interval: interval,
	}
}

// Run evaluates on every tick until ctx is cancelled. Blocks; callers run
// it on its own goroutine. The ticker is stopped on return, so shutdown
// leaves no orphaned timers.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("scheduler: started, interval %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopped")
			return
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Evaluate runs one pass over all running experiments. A failure on one
// experiment is logged and does not abort the rest of the pass.
func (s *Scheduler) Evaluate(ctx context.Context) {
	for _, exp := range s.registry.Running() {
		s.evaluateExperiment(ctx, exp)
	}
}

func (s *Scheduler) evaluateExperiment(ctx context.Context, exp domain.Experiment) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: evaluation of %s panicked: %v", exp.ID, r)
		}
	}()

	results, err := s.analyzer.Results(exp.ID)
	if err != nil {
		log.Printf("scheduler: analysis of %s failed: %v", exp.ID, err)
		return
	}

	var control *domain.VariantResult
	for i := range results {
		if results[i].IsControl {
			control = &results[i]
			break
		}
	}
	if control == nil || control.Participants < s.analyzer.MinSampleSize() {
		// Not enough control data yet to compare anything against.
		return
	}

	for _, r := range results {
		if r.IsControl || !r.IsSignificant {
			continue
		}
		if r.ConversionRate >= underperformRatio*control.ConversionRate {
			continue
		}

		flag := domain.UnderperformingFlag{
			ID:           uuid.NewString(),
			ExperimentID: exp.ID,
			VariantID:    r.VariantID,
			Confidence:   r.Confidence,
			ControlRate:  control.ConversionRate,
			VariantRate:  r.ConversionRate,
			RaisedAt:     time.Now().UTC(),
		}
		if r.Lift != nil {
			flag.Lift = *r.Lift
		}

		for _, sink := range s.sinks {
			sink.Raise(ctx, flag)
		}
		s.metrics.RecordFlag(ctx, exp.ID, r.VariantID)
	}
}
