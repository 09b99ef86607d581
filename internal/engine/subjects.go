package engine

import (
	"container/list"
	"sync"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Defaults for the in-memory subject cache.
const (
	DefaultSubjectCacheSize = 100000
	DefaultSubjectTTL       = 24 * time.Hour
)

// SubjectCache is the default in-memory SubjectStore: a bounded LRU with a
// TTL. It replaces the unbounded process-wide session map pattern; an
// evicted subject is simply a session that timed out, and a later request
// for it starts a fresh session.
type SubjectCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently seen
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	handle   *ports.SubjectHandle
	lastSeen time.Time
}

// NewSubjectCache creates a cache with the given bounds. Non-positive
// values fall back to the defaults.
func NewSubjectCache(maxEntries int, ttl time.Duration) *SubjectCache {
	if maxEntries <= 0 {
		maxEntries = DefaultSubjectCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultSubjectTTL
	}
	return &SubjectCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// GetOrCreate returns the subject's handle, creating empty session state on
// first sight. Expired and over-cap entries are evicted on the way.
func (c *SubjectCache) GetOrCreate(subjectID string) *ports.SubjectHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[subjectID]; ok {
		entry := elem.Value.(*cacheEntry)
		if now.Sub(entry.lastSeen) <= c.ttl {
			entry.lastSeen = now
			c.order.MoveToFront(elem)
			return entry.handle
		}
		c.remove(subjectID, elem)
	}

	c.evictLocked(now)

	handle := &ports.SubjectHandle{Subject: domain.NewSubject(subjectID)}
	elem := c.order.PushFront(&cacheEntry{handle: handle, lastSeen: now})
	c.entries[subjectID] = elem
	return handle
}

// Get returns the subject's handle, or nil for unknown or expired subjects.
// It never creates state, so conversion tracking cannot resurrect a
// timed-out session.
func (c *SubjectCache) Get(subjectID string) *ports.SubjectHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[subjectID]
	if !ok {
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.lastSeen) > c.ttl {
		c.remove(subjectID, elem)
		return nil
	}
	entry.lastSeen = c.now()
	c.order.MoveToFront(elem)
	return entry.handle
}

// Len returns the number of cached subjects.
func (c *SubjectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries from the back, then trims to one below
// the cap to make room for an insert. Must be called with c.mu held.
func (c *SubjectCache) evictLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		entry := elem.Value.(*cacheEntry)
		if now.Sub(entry.lastSeen) <= c.ttl {
			break
		}
		prev := elem.Prev()
		c.remove(entry.handle.Subject.ID, elem)
		elem = prev
	}

	for len(c.entries) >= c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.remove(elem.Value.(*cacheEntry).handle.Subject.ID, elem)
	}
}

func (c *SubjectCache) remove(subjectID string, elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, subjectID)
}
