package space

import (
	"testing"

	"github.com/HariAbram/scout/internal/config"
)

func mustCompile(t *testing.T, cfg *config.Config) *Space {
	t.Helper()
	sp, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return sp
}

func TestCompileOrdersVariablesChoicePoolParamsEnv(t *testing.T) {
	cfg := &config.Config{
		CompilerFlags:    []string{"-O2", "-O3"},
		CompilerFlagPool: []string{"-funroll-loops"},
		CompilerParams: config.OrderedSpecs{
			{Key: "unroll_factor", Spec: config.ValueSpec{Values: []any{"2", "4"}}},
		},
		Env: config.OrderedSpecs{
			{Key: "OMP_NUM_THREADS", Spec: config.ValueSpec{Values: []any{"1", "2"}}},
		},
	}
	sp := mustCompile(t, cfg)
	names := make([]string, len(sp.Variables))
	for i, v := range sp.Variables {
		names[i] = v.Name
	}
	want := []string{"opt_level", "-funroll-loops", "unroll_factor", "OMP_NUM_THREADS"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestCompileRejectsForwardReferencingGuard(t *testing.T) {
	cfg := &config.Config{
		Env: config.OrderedSpecs{
			{Key: "A", Spec: config.ValueSpec{When: map[string]string{"B": "1"}, Values: []any{"x"}}},
			{Key: "B", Spec: config.ValueSpec{Values: []any{"1", "2"}}},
		},
	}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected an error for a guard referencing a later-declared variable")
	}
}

func TestCompileRejectsDuplicateNames(t *testing.T) {
	cfg := &config.Config{
		CompilerFlagPool: []string{"-flag"},
		CompilerParams: config.OrderedSpecs{
			{Key: "-flag", Spec: config.ValueSpec{Values: []any{"1"}}},
		},
	}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected a duplicate-name error")
	}
}

func TestMatchGuardLiteral(t *testing.T) {
	g := &Guard{Var: "mode", Value: "fast"}
	if !MatchGuard(g, "fast") {
		t.Error("expected literal match")
	}
	if MatchGuard(g, "slow") {
		t.Error("expected literal mismatch to be false")
	}
}

func TestMatchGuardNumericSuffixPlus(t *testing.T) {
	g := &Guard{Var: "opt_level", Value: "2+"}
	cases := map[string]bool{
		"-O1":    false,
		"-O2":    true,
		"-O3":    true,
		"-Ofast": true,
		"-Og":    false,
	}
	for value, want := range cases {
		if got := MatchGuard(g, value); got != want {
			t.Errorf("MatchGuard(2+, %q) = %v, want %v", value, got, want)
		}
	}
}

func TestWalkMasksInactiveVariables(t *testing.T) {
	cfg := &config.Config{
		CompilerFlags: []string{"-O1", "-O2", "-O3"},
		CompilerParams: config.OrderedSpecs{
			{Key: "vectorize", Spec: config.ValueSpec{When: map[string]string{"opt_level": "2+"}, Values: []any{"true", "false"}}},
		},
	}
	sp := mustCompile(t, cfg)

	a := Assignment{}
	var sawVectorizeActive bool
	sp.Walk(a, func(v *Variable, active bool) {
		if v.Name == "opt_level" {
			a[v.Name] = "-O1"
			return
		}
		if v.Name == "vectorize" {
			sawVectorizeActive = active
			if active {
				a[v.Name] = "true"
			} else {
				a[v.Name] = Inactive
			}
		}
	})
	if sawVectorizeActive {
		t.Error("vectorize should be inactive under -O1")
	}
	if a["vectorize"] != Inactive {
		t.Errorf("vectorize assignment = %q, want %q", a["vectorize"], Inactive)
	}
}

func TestSuggestPopulatesEveryVariable(t *testing.T) {
	cfg := &config.Config{
		CompilerFlags: []string{"-O1", "-O2", "-O3"},
		CompilerParams: config.OrderedSpecs{
			{Key: "vectorize", Spec: config.ValueSpec{When: map[string]string{"opt_level": "2+"}, Values: []any{"true", "false"}}},
		},
	}
	sp := mustCompile(t, cfg)
	a := sp.Suggest(Assignment{}, func(v *Variable) string { return v.Domain[0] })
	if a["opt_level"] != "-O1" {
		t.Errorf("opt_level = %q, want -O1", a["opt_level"])
	}
	if a["vectorize"] != Inactive {
		t.Errorf("vectorize = %q, want inactive under -O1", a["vectorize"])
	}
}
