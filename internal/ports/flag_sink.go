package ports

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// FlagSink receives advisory UnderperformingFlag events from the scheduler.
// Sinks must not block the scheduling pass; slow delivery is the sink's
// problem to buffer.
type FlagSink interface {
	Raise(ctx context.Context, flag domain.UnderperformingFlag)
}

// FlagSinkFunc adapts a function to the FlagSink interface.
type FlagSinkFunc func(ctx context.Context, flag domain.UnderperformingFlag)

func (f FlagSinkFunc) Raise(ctx context.Context, flag domain.UnderperformingFlag) {
	f(ctx, flag)
}
