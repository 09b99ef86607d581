package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Options{MinSampleSize: domain.DefaultMinSampleSize})
}

func registerRunning(t *testing.T, e *Engine, id string, weights []float64) {
	t.Helper()
	vs := make([]domain.Variant, len(weights))
	for i, w := range weights {
		vs[i] = domain.Variant{
			ID:        fmt.Sprintf("v%d", i),
			Weight:    w,
			IsControl: i == 0,
			Config:    map[string]string{"variant": fmt.Sprintf("v%d", i)},
		}
	}
	exp := &domain.Experiment{
		ID:       id,
		Name:     id,
		Variants: vs,
		Metrics:  []string{"conversion"},
	}
	if err := e.RegisterExperiment(context.Background(), exp); err != nil {
		t.Fatalf("RegisterExperiment(%s) error = %v", id, err)
	}
	if err := e.SetExperimentStatus(context.Background(), id, domain.StatusRunning); err != nil {
		t.Fatalf("SetExperimentStatus(%s, running) error = %v", id, err)
	}
}

func TestAssigner_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-det", []float64{0.5, 0.5})
	ctx := context.Background()

	first, variant, ok := e.GetAssignment(ctx, "subject-1", "exp-det")
	if !ok {
		t.Fatal("GetAssignment() ok = false, want assignment")
	}
	if variant == nil || variant.ID != first.VariantID {
		t.Fatalf("variant = %v, want %s", variant, first.VariantID)
	}

	for i := 0; i < 10; i++ {
		again, _, ok := e.GetAssignment(ctx, "subject-1", "exp-det")
		if !ok || again.VariantID != first.VariantID {
			t.Fatalf("call %d: VariantID = %s, want %s", i, again.VariantID, first.VariantID)
		}
	}

	// Repeated lookups must not inflate participant counts.
	results, err := e.GetResults("exp-det")
	if err != nil {
		t.Fatalf("GetResults() error = %v", err)
	}
	var total int64
	for _, r := range results {
		total += r.Participants
	}
	if total != 1 {
		t.Errorf("total participants = %d, want 1", total)
	}
}

func TestAssigner_PartitionCoverage(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-cov", []float64{0.25, 0.25, 0.25, 0.25})
	ctx := context.Background()

	const subjects = 100000
	counts := make(map[string]int)
	for i := 0; i < subjects; i++ {
		a, _, ok := e.GetAssignment(ctx, fmt.Sprintf("subject-%d", i), "exp-cov")
		if !ok {
			t.Fatalf("subject-%d: no assignment", i)
		}
		counts[a.VariantID]++
	}

	if len(counts) != 4 {
		t.Fatalf("assigned to %d variants, want 4", len(counts))
	}
	for id, n := range counts {
		share := float64(n) / subjects
		if math.Abs(share-0.25) > 0.02 {
			t.Errorf("variant %s share = %.4f, want 0.25 ± 0.02", id, share)
		}
	}
}

func TestAssigner_ExactlyOnceParticipation(t *testing.T) {
	e := newTestEngine(t)
	registerRunning(t, e, "exp-once", []float64{0.5, 0.5})
	ctx := context.Background()

	const callers = 100
	variants := make([]string, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			a, _, ok := e.GetAssignment(ctx, "hot-subject", "exp-once")
			if ok {
				variants[i] = a.VariantID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if variants[i] != variants[0] {
			t.Fatalf("caller %d got %s, caller 0 got %s", i, variants[i], variants[0])
		}
	}

	results, err := e.GetResults("exp-once")
	if err != nil {
		t.Fatalf("GetResults() error = %v", err)
	}
	var total int64
	for _, r := range results {
		total += r.Participants
	}
	if total != 1 {
		t.Errorf("total participants = %d, want 1 (exactly-once)", total)
	}
}

func TestAssigner_StatusGated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	exp := &domain.Experiment{
		ID: "exp-gate",
		Variants: []domain.Variant{
			{ID: "control", Weight: 0.5, IsControl: true},
			{ID: "treatment", Weight: 0.5},
		},
	}
	if err := e.RegisterExperiment(ctx, exp); err != nil {
		t.Fatalf("RegisterExperiment() error = %v", err)
	}

	// Draft: no assignment for anyone.
	if _, _, ok := e.GetAssignment(ctx, "s1", "exp-gate"); ok {
		t.Error("GetAssignment() on draft experiment assigned a variant")
	}

	// Running: assignments succeed, but not retroactively.
	if err := e.SetExperimentStatus(ctx, "exp-gate", domain.StatusRunning); err != nil {
		t.Fatalf("SetExperimentStatus(running) error = %v", err)
	}
	if _, _, ok := e.GetAssignment(ctx, "s1", "exp-gate"); !ok {
		t.Error("GetAssignment() on running experiment returned NoAssignment")
	}

	// Paused: new subjects get nothing, existing assignments survive.
	if err := e.SetExperimentStatus(ctx, "exp-gate", domain.StatusPaused); err != nil {
		t.Fatalf("SetExperimentStatus(paused) error = %v", err)
	}
	if _, _, ok := e.GetAssignment(ctx, "s2", "exp-gate"); ok {
		t.Error("GetAssignment() on paused experiment assigned a new subject")
	}
	if _, _, ok := e.GetAssignment(ctx, "s1", "exp-gate"); !ok {
		t.Error("GetAssignment() dropped an existing assignment while paused")
	}
}

func TestAssigner_UnknownExperiment(t *testing.T) {
	e := newTestEngine(t)
	if _, _, ok := e.GetAssignment(context.Background(), "s1", "nope"); ok {
		t.Error("GetAssignment() for unknown experiment returned an assignment")
	}
}

func TestPickVariant_FallbackToLast(t *testing.T) {
	exp := &domain.Experiment{
		Variants: []domain.Variant{
			{ID: "a", Weight: 0.3, IsControl: true},
			{ID: "b", Weight: 0.7},
		},
	}

	// r beyond any cumulative weight (only possible through rounding)
	// must still land somewhere.
	if v := pickVariant(exp, 1.5); v.ID != "b" {
		t.Errorf("pickVariant(1.5) = %s, want b", v.ID)
	}
	if v := pickVariant(exp, 0.0); v.ID != "a" {
		t.Errorf("pickVariant(0.0) = %s, want a", v.ID)
	}
	if v := pickVariant(exp, 0.9); v.ID != "b" {
		t.Errorf("pickVariant(0.9) = %s, want b", v.ID)
	}
}

func TestBucket_RangeAndDeterminism(t *testing.T) {
	for i := 0; i < 1000; i++ {
		s := fmt.Sprintf("subject-%d", i)
		r := bucket(s, "exp")
		if r < 0 || r >= 1 {
			t.Fatalf("bucket(%s) = %g, want [0,1)", s, r)
		}
		if r != bucket(s, "exp") {
			t.Fatalf("bucket(%s) not deterministic", s)
		}
	}

	// Different experiments should bucket the same subject independently.
	same := 0
	for i := 0; i < 1000; i++ {
		s := fmt.Sprintf("subject-%d", i)
		if bucket(s, "exp-a") == bucket(s, "exp-b") {
			same++
		}
	}
	if same > 10 {
		t.Errorf("%d/1000 subjects share buckets across experiments, hash looks correlated", same)
	}
}
