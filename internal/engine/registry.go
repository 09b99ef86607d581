package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Registry holds experiment definitions in memory and is the runtime
// authority for them. Definitions are immutable after registration except
// for status. Writes are operator-driven and rare; reads dominate.
type Registry struct {
	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
	store       ports.DefinitionStore
}

// NewRegistry creates an empty registry. store may be nil; when set it is
// written through on registration and status changes, and can seed the
// registry via Load.
func NewRegistry(store ports.DefinitionStore) *Registry {
	return &Registry{
		experiments: make(map[string]*domain.Experiment),
		store:       store,
	}
}

// Load seeds the registry from the definition store. Called once at boot,
// before the registry is shared.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	exps, err := r.store.ListExperiments(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, exp := range exps {
		r.experiments[exp.ID] = exp
	}
	return nil
}

// Register validates and stores a new experiment definition. The definition
// is rejected with ValidationError when weights don't sum to 1, there is
// not exactly one control, variant ids repeat, or the id is already taken.
func (r *Registry) Register(ctx context.Context, exp *domain.Experiment) error {
	if exp.SignificanceThreshold == 0 {
		exp.SignificanceThreshold = domain.DefaultSignificanceThreshold
	}
	if exp.Status == "" {
		exp.Status = domain.StatusDraft
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	if err := exp.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.experiments[exp.ID]; exists {
		r.mu.Unlock()
		return &domain.ValidationError{Reason: "experiment id already registered"}
	}
	r.experiments[exp.ID] = exp
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveExperiment(ctx, exp); err != nil {
			log.Printf("registry: failed to persist experiment %s: %v", exp.ID, err)
		}
	}
	return nil
}

// SetStatus transitions an experiment's lifecycle status. Transitions
// outside draft->running, running->paused, paused->running and
// running->completed fail with InvalidTransitionError and leave the state
// unchanged.
func (r *Registry) SetStatus(ctx context.Context, experimentID string, status domain.Status) error {
	r.mu.Lock()
	exp, ok := r.experiments[experimentID]
	if !ok {
		r.mu.Unlock()
		return &domain.NotFoundError{ExperimentID: experimentID}
	}
	if !domain.CanTransition(exp.Status, status) {
		err := &domain.InvalidTransitionError{ExperimentID: experimentID, From: exp.Status, To: status}
		r.mu.Unlock()
		return err
	}

	exp.Status = status
	switch status {
	case domain.StatusRunning:
		if exp.StartedAt.IsZero() {
			exp.StartedAt = time.Now().UTC()
		}
	case domain.StatusCompleted:
		now := time.Now().UTC()
		exp.EndedAt = &now
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, experimentID, status); err != nil {
			log.Printf("registry: failed to persist status of %s: %v", experimentID, err)
		}
	}
	return nil
}

// Get returns a copy of the experiment definition, or NotFoundError.
func (r *Registry) Get(experimentID string) (domain.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.experiments[experimentID]
	if !ok {
		return domain.Experiment{}, &domain.NotFoundError{ExperimentID: experimentID}
	}
	return *exp, nil
}

// List returns copies of all registered experiments, ordered by id.
func (r *Registry) List() []domain.Experiment {
	r.mu.RLock()
	out := make([]domain.Experiment, 0, len(r.experiments))
	for _, exp := range r.experiments {
		out = append(out, *exp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Running returns copies of all experiments currently in running status.
func (r *Registry) Running() []domain.Experiment {
	var out []domain.Experiment
	for _, exp := range r.List() {
		if exp.Status == domain.StatusRunning {
			out = append(out, exp)
		}
	}
	return out
}
