package engine

import (
	"context"
	"testing"
)

func totalConversions(t *testing.T, e *Engine, experimentID string) float64 {
	t.Helper()
	results, err := e.GetResults(experimentID)
	if err != nil {
		t.Fatalf("GetResults(%s) error = %v", experimentID, err)
	}
	var total float64
	for _, r := range results {
		total += r.Conversions
	}
	return total
}

func TestTracker_NoConversionWithoutExposure(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-track", []float64{0.5, 0.5})
	ctx := context.Background()

	// Never assigned: counters must stay untouched.
	e.TrackConversion(ctx, "ghost", "exp-track", "conversion", 1)

	if got := totalConversions(t, e, "exp-track"); got != 0 {
		t.Errorf("conversions after unexposed track = %g, want 0", got)
	}
	if got := e.IgnoredConversions()["unknown_subject"]; got != 1 {
		t.Errorf("ignored[unknown_subject] = %d, want 1", got)
	}
}

func TestTracker_NoConversionForUnassignedExperiment(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-a", []float64{0.5, 0.5})
	registerRunning(t, e, "exp-b", []float64{0.5, 0.5})
	ctx := context.Background()

	// Subject exists through exp-a but was never exposed to exp-b.
	if _, _, ok := e.GetAssignment(ctx, "s1", "exp-a"); !ok {
		t.Fatal("setup: assignment to exp-a failed")
	}
	e.TrackConversion(ctx, "s1", "exp-b", "conversion", 1)

	if got := totalConversions(t, e, "exp-b"); got != 0 {
		t.Errorf("exp-b conversions = %g, want 0", got)
	}
	if got := e.IgnoredConversions()["no_assignment"]; got != 1 {
		t.Errorf("ignored[no_assignment] = %d, want 1", got)
	}
}

func TestTracker_UndeclaredMetricIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-metric", []float64{0.5, 0.5})
	ctx := context.Background()

	if _, _, ok := e.GetAssignment(ctx, "s1", "exp-metric"); !ok {
		t.Fatal("setup: assignment failed")
	}
	// The experiment declares "conversion", not "pageview". Shared tracking
	// call-sites make this a silent no-op, not an error.
	e.TrackConversion(ctx, "s1", "exp-metric", "pageview", 1)

	if got := totalConversions(t, e, "exp-metric"); got != 0 {
		t.Errorf("conversions after undeclared metric = %g, want 0", got)
	}
	if got := e.IgnoredConversions()["unknown_metric"]; got != 1 {
		t.Errorf("ignored[unknown_metric] = %d, want 1", got)
	}
}

func TestTracker_AccumulatesValues(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-sum", []float64{0.5, 0.5})
	ctx := context.Background()

	a, _, ok := e.GetAssignment(ctx, "s1", "exp-sum")
	if !ok {
		t.Fatal("setup: assignment failed")
	}

	e.TrackConversion(ctx, "s1", "exp-sum", "conversion", 1)
	e.TrackConversion(ctx, "s1", "exp-sum", "conversion", 2.5)

	results, err := e.GetResults("exp-sum")
	if err != nil {
		t.Fatalf("GetResults() error = %v", err)
	}
	for _, r := range results {
		want := 0.0
		if r.VariantID == a.VariantID {
			want = 3.5
		}
		if r.Conversions != want {
			t.Errorf("variant %s conversions = %g, want %g", r.VariantID, r.Conversions, want)
		}
	}
}
