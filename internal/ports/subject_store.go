package ports

import (
	"sync"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// SubjectStore holds per-subject session state. GetOrCreate must return a
// stable handle for a subject so callers can lock per subject; Get returns
// nil when the subject is unknown. Implementations decide eviction (TTL,
// size caps); the engine tolerates a subject being evicted between calls,
// which at worst re-runs the deterministic assignment.
type SubjectStore interface {
	GetOrCreate(subjectID string) *SubjectHandle
	Get(subjectID string) *SubjectHandle
	Len() int
}

// SubjectHandle pairs subject state with its lock. All reads and writes of
// the wrapped Subject must happen while holding the mutex.
type SubjectHandle struct {
	sync.Mutex
	Subject *domain.Subject
}
