package optimizer

import (
	"testing"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

func buildTestSpace(t *testing.T) *space.Space {
	t.Helper()
	cfg := &config.Config{
		CompilerFlags: []string{"-O1", "-O2", "-O3"},
		CompilerParams: config.OrderedSpecs{
			{Key: "unroll", Spec: config.ValueSpec{Values: []any{"2", "4", "8"}}},
		},
	}
	sp, err := space.Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return sp
}

func TestDominates(t *testing.T) {
	if !Dominates([]float64{1, 1}, []float64{2, 2}) {
		t.Error("expected [1,1] to dominate [2,2] when minimizing")
	}
	if Dominates([]float64{1, 2}, []float64{2, 1}) {
		t.Error("non-dominated vectors should not dominate each other")
	}
	if Dominates([]float64{1, 1}, []float64{1, 1}) {
		t.Error("a vector cannot dominate an equal vector")
	}
}

func TestParetoFrontExcludesDominated(t *testing.T) {
	obs := []Observation{
		{Signed: []float64{1, 4}},
		{Signed: []float64{4, 1}},
		{Signed: []float64{3, 3}}, // dominated by neither of the above, but worse than a blend isn't relevant
		{Signed: []float64{5, 5}}, // dominated by all three
	}
	front := ParetoFront(obs)
	inFront := map[int]bool{}
	for _, i := range front {
		inFront[i] = true
	}
	if inFront[3] {
		t.Error("[5,5] should be dominated and excluded from the front")
	}
	if !inFront[0] || !inFront[1] {
		t.Error("[1,4] and [4,1] should both be on the front")
	}
}

func TestFacadeSuggestMasksInactiveVariable(t *testing.T) {
	cfg := &config.Config{
		CompilerFlags: []string{"-O1", "-O2", "-O3"},
		CompilerParams: config.OrderedSpecs{
			{Key: "vectorize", Spec: config.ValueSpec{When: map[string]string{"opt_level": "2+"}, Values: []any{"true", "false"}}},
		},
	}
	sp, err := space.Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	f, err := New(sp, []config.Objective{{Metric: "cycles", Goal: "min"}}, config.SearchSpec{Sampler: "tpe", RandomSeed: 1, WarmupTrials: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 20; i++ {
		a := f.Suggest()
		if a["opt_level"] == "-O1" && a["vectorize"] != space.Inactive {
			t.Fatalf("vectorize should be inactive under -O1, got %q", a["vectorize"])
		}
		f.Report(a, []float64{float64(i)})
	}
}

func TestFacadeReportInfeasibleIsDominatedByAnyFeasible(t *testing.T) {
	sp := buildTestSpace(t)
	f, err := New(sp, []config.Objective{{Metric: "cycles", Goal: "min"}}, config.SearchSpec{Sampler: "tpe"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := f.Suggest()
	f.ReportInfeasible(a)
	if len(f.history) != 1 {
		t.Fatalf("expected one recorded observation, got %d", len(f.history))
	}
	feasibleSigned := []float64{100}
	if !Dominates(feasibleSigned, f.history[0].Signed) {
		t.Errorf("a feasible trial should dominate the infeasible penalty, penalty = %v", f.history[0].Signed)
	}
}

func TestNSGA3SamplerProducesCompleteAssignments(t *testing.T) {
	sp := buildTestSpace(t)
	f, err := New(sp, []config.Objective{{Metric: "a", Goal: "min"}, {Metric: "b", Goal: "max"}}, config.SearchSpec{Sampler: "nsga3", PopulationSize: 4, RandomSeed: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 12; i++ {
		a := f.Suggest()
		if a["opt_level"] == "" || a["unroll"] == "" {
			t.Fatalf("incomplete assignment: %+v", a)
		}
		f.Report(a, []float64{float64(12 - i), float64(i)})
	}
}

func TestRFSamplerFallsBackToRandomBeforeWarmup(t *testing.T) {
	sp := buildTestSpace(t)
	f, err := New(sp, []config.Objective{{Metric: "cycles", Goal: "min"}}, config.SearchSpec{Sampler: "rf", WarmupTrials: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := f.Suggest()
	if a["opt_level"] == "" {
		t.Fatal("expected a populated assignment even before warmup")
	}
}
