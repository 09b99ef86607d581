package ports

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// DefinitionStore persists experiment definitions and status changes so the
// in-memory registry can be rebuilt across restarts. The registry stays the
// runtime authority; store failures are logged, never surfaced to callers.
type DefinitionStore interface {
	SaveExperiment(ctx context.Context, exp *domain.Experiment) error
	UpdateStatus(ctx context.Context, experimentID string, status domain.Status) error
	ListExperiments(ctx context.Context) ([]*domain.Experiment, error)
}

// FlagStore persists advisory flags for later review.
type FlagStore interface {
	SaveFlag(ctx context.Context, flag domain.UnderperformingFlag) error
	ListFlags(ctx context.Context, experimentID string, limit int64) ([]domain.UnderperformingFlag, error)
}
