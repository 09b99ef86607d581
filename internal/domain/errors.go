package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed experiment definition or operation
// input. The reason is safe to show to API callers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reports an unknown experiment id.
type NotFoundError struct {
	ExperimentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("experiment %q not found", e.ExperimentID)
}

// InvalidTransitionError reports a status change outside the lifecycle
// state machine. The experiment is left unchanged.
type InvalidTransitionError struct {
	ExperimentID string
	From         Status
	To           Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("experiment %q cannot transition from %s to %s", e.ExperimentID, e.From, e.To)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nerr *NotFoundError
	return errors.As(err, &nerr)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var terr *InvalidTransitionError
	return errors.As(err, &terr)
}
