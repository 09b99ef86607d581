package engine

import "sync"

// CounterSnapshot is a point-in-time copy of one variant's counters. Both
// values are taken under the same lock so they are mutually consistent for
// a z-test.
type CounterSnapshot struct {
	Participants int64
	Conversions  float64
}

// experimentCounters holds the per-variant counters of a single experiment
// behind its own mutex, so experiments never contend with each other.
type experimentCounters struct {
	mu       sync.Mutex
	variants map[string]*CounterSnapshot
}

func (c *experimentCounters) addParticipant(variantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variant(variantID).Participants++
}

func (c *experimentCounters) addConversion(variantID string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variant(variantID).Conversions += value
}

// variant must be called with c.mu held.
func (c *experimentCounters) variant(variantID string) *CounterSnapshot {
	v, ok := c.variants[variantID]
	if !ok {
		v = &CounterSnapshot{}
		c.variants[variantID] = v
	}
	return v
}

func (c *experimentCounters) snapshot() map[string]CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]CounterSnapshot, len(c.variants))
	for id, v := range c.variants {
		out[id] = *v
	}
	return out
}

// counterArena is the keyed arena of per-experiment counters. The outer
// lock only guards the map of experiments; all counter mutation happens
// under the per-experiment mutex.
type counterArena struct {
	mu          sync.RWMutex
	experiments map[string]*experimentCounters
}

func newCounterArena() *counterArena {
	return &counterArena{experiments: make(map[string]*experimentCounters)}
}

func (a *counterArena) forExperiment(experimentID string) *experimentCounters {
	a.mu.RLock()
	c, ok := a.experiments[experimentID]
	a.mu.RUnlock()
	if ok {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.experiments[experimentID]; ok {
		return c
	}
	c = &experimentCounters{variants: make(map[string]*CounterSnapshot)}
	a.experiments[experimentID] = c
	return c
}

// Snapshot returns a consistent copy of one experiment's counters.
func (a *counterArena) Snapshot(experimentID string) map[string]CounterSnapshot {
	return a.forExperiment(experimentID).snapshot()
}
