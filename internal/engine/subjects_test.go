package engine

import (
	"fmt"
	"testing"
	"time"
)

func TestSubjectCache_GetOrCreate(t *testing.T) {
	c := NewSubjectCache(10, time.Hour)

	h1 := c.GetOrCreate("s1")
	if h1 == nil || h1.Subject.ID != "s1" {
		t.Fatalf("GetOrCreate(s1) = %v", h1)
	}
	if h2 := c.GetOrCreate("s1"); h2 != h1 {
		t.Error("GetOrCreate(s1) returned a different handle on second call")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestSubjectCache_GetDoesNotCreate(t *testing.T) {
	c := NewSubjectCache(10, time.Hour)

	if h := c.Get("missing"); h != nil {
		t.Errorf("Get(missing) = %v, want nil", h)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Get, want 0", c.Len())
	}
}

func TestSubjectCache_CapEviction(t *testing.T) {
	c := NewSubjectCache(3, time.Hour)

	for i := 0; i < 5; i++ {
		c.GetOrCreate(fmt.Sprintf("s%d", i))
	}

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want cap 3", c.Len())
	}
	// Oldest entries are gone, newest survive.
	if c.Get("s0") != nil || c.Get("s1") != nil {
		t.Error("oldest subjects survived cap eviction")
	}
	if c.Get("s4") == nil {
		t.Error("newest subject evicted")
	}
}

func TestSubjectCache_TTLEviction(t *testing.T) {
	c := NewSubjectCache(10, time.Minute)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.GetOrCreate("old")
	current = current.Add(2 * time.Minute)

	if h := c.Get("old"); h != nil {
		t.Error("Get() returned an expired subject")
	}

	// A fresh request after expiry starts a new session.
	h := c.GetOrCreate("old")
	if h == nil || len(h.Subject.Assignments) != 0 {
		t.Errorf("GetOrCreate() after expiry = %v, want fresh state", h)
	}
}

func TestSubjectCache_RecentUseRefreshesTTL(t *testing.T) {
	c := NewSubjectCache(10, time.Minute)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.GetOrCreate("s1")
	for i := 0; i < 3; i++ {
		current = current.Add(30 * time.Second)
		if c.Get("s1") == nil {
			t.Fatalf("s1 expired at step %d despite activity", i)
		}
	}
}
