package engine

import (
	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// Analyzer derives VariantResults from the counter arena: conversion rates,
// the two-proportion z-test of each variant against control, and the
// Beta-Binomial posterior summary. Everything is recomputed at read time
// from a consistent counter snapshot; nothing derived is stored.
type Analyzer struct {
	registry      *Registry
	counters      *counterArena
	minSampleSize int64
}

// NewAnalyzer creates an analyzer with the engine-wide minimum sample size
// floor (see domain.DefaultMinSampleSize).
func NewAnalyzer(registry *Registry, counters *counterArena, minSampleSize int64) *Analyzer {
	if minSampleSize <= 0 {
		minSampleSize = domain.DefaultMinSampleSize
	}
	return &Analyzer{
		registry:      registry,
		counters:      counters,
		minSampleSize: minSampleSize,
	}
}

// Results computes per-variant results for the experiment, in variant
// declaration order. Returns NotFoundError for unknown experiments.
//
// "Probability of being best" is each variant's posterior expected rate
// normalized by the sum over all variants. This is a closed-form
// simplification kept on purpose; a sampled posterior comparison would
// change the numbers.
func (a *Analyzer) Results(experimentID string) ([]domain.VariantResult, error) {
	exp, err := a.registry.Get(experimentID)
	if err != nil {
		return nil, err
	}

	snapshot := a.counters.Snapshot(experimentID)
	control := exp.Control()
	controlCounts := snapshot[control.ID]
	controlRate := rate(controlCounts)

	results := make([]domain.VariantResult, 0, len(exp.Variants))
	var expectedSum float64

	for _, v := range exp.Variants {
		counts := snapshot[v.ID]
		r := domain.VariantResult{
			VariantID:      v.ID,
			IsControl:      v.IsControl,
			Participants:   counts.Participants,
			Conversions:    counts.Conversions,
			ConversionRate: rate(counts),
			Bayes:          domain.EstimatePosterior(counts.Conversions, counts.Participants),
		}

		if !v.IsControl {
			sig := domain.CalculateSignificance(
				controlRate, controlCounts.Participants,
				r.ConversionRate, counts.Participants,
				exp.SignificanceThreshold, a.minSampleSize,
			)
			r.Confidence = sig.Confidence
			r.IsSignificant = sig.IsSignificant
			r.Lift = domain.Lift(controlRate, r.ConversionRate)
		}

		expectedSum += r.Bayes.ExpectedRate
		results = append(results, r)
	}

	if expectedSum > 0 {
		for i := range results {
			results[i].ProbabilityBest = results[i].Bayes.ExpectedRate / expectedSum
		}
	}
	return results, nil
}

// MinSampleSize returns the analyzer's sample floor.
func (a *Analyzer) MinSampleSize() int64 {
	return a.minSampleSize
}

func rate(c CounterSnapshot) float64 {
	if c.Participants == 0 {
		return 0
	}
	return c.Conversions / float64(c.Participants)
}
