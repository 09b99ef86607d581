package engine

import (
	"context"
	"testing"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

func schedulerFixture(t *testing.T) (*Registry, *counterArena, *Scheduler, *FlagRing) {
	t.Helper()
	registry, arena, analyzer := analyzerFixture(t)
	if err := registry.SetStatus(context.Background(), "exp-1", domain.StatusRunning); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	ring := NewFlagRing(16)
	sched := NewScheduler(registry, analyzer, noopMetrics{}, time.Minute, ring)
	return registry, arena, sched, ring
}

func TestScheduler_FlagsUnderperformer(t *testing.T) {
	_, arena, sched, ring := schedulerFixture(t)
	// Treatment converts at half the control rate with strong evidence.
	seedCounters(arena, "exp-1", map[string]CounterSnapshot{
		"control":   {Participants: 1000, Conversions: 200},
		"treatment": {Participants: 1000, Conversions: 100},
	})

	sched.Evaluate(context.Background())

	flags := ring.Recent()
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1", len(flags))
	}
	flag := flags[0]
	if flag.ExperimentID != "exp-1" || flag.VariantID != "treatment" {
		t.Errorf("flag = %+v, want exp-1/treatment", flag)
	}
	if flag.Lift >= 0 {
		t.Errorf("flag lift = %g, want negative", flag.Lift)
	}
	if flag.Confidence < 0.95 {
		t.Errorf("flag confidence = %g, want >= 0.95", flag.Confidence)
	}
}

func TestScheduler_NoFlagAboveRatio(t *testing.T) {
	_, arena, sched, ring := schedulerFixture(t)
	// Significantly different but above 0.8x the control rate: advisory
	// threshold not crossed.
	seedCounters(arena, "exp-1", map[string]CounterSnapshot{
		"control":   {Participants: 10000, Conversions: 2000}, // 0.20
		"treatment": {Participants: 10000, Conversions: 1750}, // 0.175 > 0.16
	})

	sched.Evaluate(context.Background())

	if flags := ring.Recent(); len(flags) != 0 {
		t.Errorf("got %d flags, want 0", len(flags))
	}
}

func TestScheduler_SkipsUnderpoweredControl(t *testing.T) {
	_, arena, sched, ring := schedulerFixture(t)
	seedCounters(arena, "exp-1", map[string]CounterSnapshot{
		"control":   {Participants: 10, Conversions: 5},
		"treatment": {Participants: 1000, Conversions: 10},
	})

	sched.Evaluate(context.Background())

	if flags := ring.Recent(); len(flags) != 0 {
		t.Errorf("got %d flags with underpowered control, want 0", len(flags))
	}
}

func TestScheduler_IgnoresNonRunning(t *testing.T) {
	registry, arena, sched, ring := schedulerFixture(t)
	seedCounters(arena, "exp-1", map[string]CounterSnapshot{
		"control":   {Participants: 1000, Conversions: 200},
		"treatment": {Participants: 1000, Conversions: 100},
	})
	if err := registry.SetStatus(context.Background(), "exp-1", domain.StatusPaused); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	sched.Evaluate(context.Background())

	if flags := ring.Recent(); len(flags) != 0 {
		t.Errorf("got %d flags for paused experiment, want 0", len(flags))
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	_, _, sched, _ := schedulerFixture(t)
	sched.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop within 1s of cancellation")
	}
}

func TestScheduler_MultipleSinks(t *testing.T) {
	registry, arena, _, _ := schedulerFixture(t)
	seedCounters(arena, "exp-1", map[string]CounterSnapshot{
		"control":   {Participants: 1000, Conversions: 200},
		"treatment": {Participants: 1000, Conversions: 100},
	})

	var calls int
	fn := ports.FlagSinkFunc(func(ctx context.Context, flag domain.UnderperformingFlag) {
		calls++
	})
	ring := NewFlagRing(4)
	sched := NewScheduler(registry, NewAnalyzer(registry, arena, domain.DefaultMinSampleSize), noopMetrics{}, time.Minute, ring, fn)

	sched.Evaluate(context.Background())

	if calls != 1 {
		t.Errorf("func sink calls = %d, want 1", calls)
	}
	if len(ring.Recent()) != 1 {
		t.Errorf("ring flags = %d, want 1", len(ring.Recent()))
	}
}
