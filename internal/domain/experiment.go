package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ParseStatus converts a string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusRunning, StatusPaused, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown experiment status %q", s)
}

// validTransitions is the allowed status state machine. Anything not listed
// fails with InvalidTransitionError.
var validTransitions = map[Status][]Status{
	StatusDraft:   {StatusRunning},
	StatusRunning: {StatusPaused, StatusCompleted},
	StatusPaused:  {StatusRunning},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WeightTolerance is the allowed deviation of the variant weight sum from 1.0.
const WeightTolerance = 1e-6

// Variant is one treatment within an experiment.
type Variant struct {
	ID        string
	Weight    float64
	IsControl bool
	// Config is an opaque payload returned to callers on assignment.
	// The engine imposes no semantics on it.
	Config map[string]string
}

// Experiment is an immutable experiment definition plus its mutable status.
type Experiment struct {
	ID                    string
	Name                  string
	Variants              []Variant
	Status                Status
	StartedAt             time.Time
	EndedAt               *time.Time
	TargetSampleSize      int64
	SignificanceThreshold float64
	Metrics               []string
	CreatedAt             time.Time
}

// DefaultSignificanceThreshold is applied when a definition omits one.
const DefaultSignificanceThreshold = 0.95

// Validate checks the definition invariants: weights sum to 1.0 within
// tolerance, exactly one control variant, no duplicate variant IDs.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return &ValidationError{Reason: "experiment id is empty"}
	}
	if len(e.Variants) == 0 {
		return &ValidationError{Reason: "experiment has no variants"}
	}

	var sum float64
	controls := 0
	seen := make(map[string]bool, len(e.Variants))
	for _, v := range e.Variants {
		if v.ID == "" {
			return &ValidationError{Reason: "variant id is empty"}
		}
		if seen[v.ID] {
			return &ValidationError{Reason: fmt.Sprintf("duplicate variant id %q", v.ID)}
		}
		seen[v.ID] = true
		if v.Weight < 0 {
			return &ValidationError{Reason: fmt.Sprintf("variant %q has negative weight", v.ID)}
		}
		sum += v.Weight
		if v.IsControl {
			controls++
		}
	}

	if math.Abs(sum-1.0) > WeightTolerance {
		return &ValidationError{Reason: fmt.Sprintf("variant weights sum to %g, expected 1.0", sum)}
	}
	if controls != 1 {
		return &ValidationError{Reason: fmt.Sprintf("experiment must have exactly one control variant, got %d", controls)}
	}
	if e.SignificanceThreshold < 0 || e.SignificanceThreshold > 1 {
		return &ValidationError{Reason: fmt.Sprintf("significance threshold %g outside [0,1]", e.SignificanceThreshold)}
	}
	return nil
}

// Control returns the control variant. Validate guarantees there is one.
func (e *Experiment) Control() *Variant {
	for i := range e.Variants {
		if e.Variants[i].IsControl {
			return &e.Variants[i]
		}
	}
	return nil
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// TracksMetric reports whether the experiment declares the metric.
func (e *Experiment) TracksMetric(metric string) bool {
	for _, m := range e.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}
