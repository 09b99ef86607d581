package engine

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// bucketPrecision fixes the granularity of the assignment bucket. A hash is
// reduced to one of 10000 buckets, so weights are effectively resolved to
// four decimal places.
const bucketPrecision = 10000

// Assigner maps (subject, experiment) pairs to variants deterministically
// and records first-exposure participation exactly once.
type Assigner struct {
	registry *Registry
	subjects ports.SubjectStore
	counters *counterArena
	metrics  ports.MetricsExporter
}

// NewAssigner wires an assigner over the shared registry, subject store and
// counter arena.
func NewAssigner(registry *Registry, subjects ports.SubjectStore, counters *counterArena, metrics ports.MetricsExporter) *Assigner {
	return &Assigner{
		registry: registry,
		subjects: subjects,
		counters: counters,
		metrics:  metrics,
	}
}

// Assign returns the subject's variant for the experiment, creating the
// assignment on first exposure. The second return is false when the
// experiment is unknown or not running and the subject has no prior
// assignment: the caller gets no variant and no config (NoAssignment).
//
// The same (subject, experiment) pair always resolves to the same variant,
// and concurrent first-time calls increment participants exactly once: the
// check-then-increment runs under the subject's lock.
func (a *Assigner) Assign(ctx context.Context, subjectID, experimentID string) (domain.Assignment, *domain.Variant, bool) {
	handle := a.subjects.GetOrCreate(subjectID)
	handle.Lock()
	defer handle.Unlock()

	if existing, ok := handle.Subject.Assignments[experimentID]; ok {
		// Idempotent read path: no counter mutation.
		if exp, err := a.registry.Get(experimentID); err == nil {
			return existing, exp.Variant(existing.VariantID), true
		}
		return existing, nil, true
	}

	exp, err := a.registry.Get(experimentID)
	if err != nil || exp.Status != domain.StatusRunning {
		return domain.Assignment{}, nil, false
	}

	variant := pickVariant(&exp, bucket(subjectID, experimentID))

	assignment := domain.Assignment{
		SubjectID:    subjectID,
		ExperimentID: experimentID,
		VariantID:    variant.ID,
		AssignedAt:   time.Now().UTC(),
	}
	handle.Subject.Assignments[experimentID] = assignment
	a.counters.forExperiment(experimentID).addParticipant(variant.ID)
	a.metrics.RecordAssignment(ctx, experimentID, variant.ID)

	return assignment, variant, true
}

// bucket hashes subjectID+experimentID with 32-bit FNV-1a and normalizes it
// to [0,1) at fixed four-decimal precision.
func bucket(subjectID, experimentID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(subjectID))
	h.Write([]byte(experimentID))
	return float64(h.Sum32()%bucketPrecision) / bucketPrecision
}

// pickVariant walks variants in declaration order accumulating weight and
// selects the first whose cumulative weight reaches r. Floating rounding
// can leave no variant selected; the last one is the fallback so the
// partition always covers [0,1).
func pickVariant(exp *domain.Experiment, r float64) *domain.Variant {
	var cumulative float64
	for i := range exp.Variants {
		cumulative += exp.Variants[i].Weight
		if cumulative >= r {
			return &exp.Variants[i]
		}
	}
	return &exp.Variants[len(exp.Variants)-1]
}
