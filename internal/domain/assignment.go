package domain

import "time"

// Assignment maps a (subject, experiment) pair to a variant. It is created
// once, on first lookup, and never changes for the lifetime of that
// experiment definition.
type Assignment struct {
	SubjectID    string
	ExperimentID string
	VariantID    string
	AssignedAt   time.Time
}

// ConversionEvent is one recorded conversion in a subject's log.
type ConversionEvent struct {
	ExperimentID string
	Metric       string
	Value        float64
	Timestamp    time.Time
}

// Subject holds per-subject session state: the assignment map and the
// ordered conversion log. Created on the first assignment request.
type Subject struct {
	ID          string
	Assignments map[string]Assignment // experimentID -> assignment
	Conversions []ConversionEvent
}

// NewSubject creates empty session state for a subject.
func NewSubject(id string) *Subject {
	return &Subject{
		ID:          id,
		Assignments: make(map[string]Assignment),
	}
}
