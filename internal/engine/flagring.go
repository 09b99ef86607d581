package engine

import (
	"context"
	"sync"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// FlagRing is a fixed-size in-memory FlagSink keeping the most recent
// advisory flags for inspection over the API.
type FlagRing struct {
	mu    sync.Mutex
	flags []domain.UnderperformingFlag
	max   int
}

// NewFlagRing creates a ring keeping at most max flags.
func NewFlagRing(max int) *FlagRing {
	if max <= 0 {
		max = 256
	}
	return &FlagRing{max: max}
}

func (r *FlagRing) Raise(ctx context.Context, flag domain.UnderperformingFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags = append(r.flags, flag)
	if len(r.flags) > r.max {
		r.flags = r.flags[len(r.flags)-r.max:]
	}
}

// Recent returns the retained flags, newest last.
func (r *FlagRing) Recent() []domain.UnderperformingFlag {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UnderperformingFlag, len(r.flags))
	copy(out, r.flags)
	return out
}
