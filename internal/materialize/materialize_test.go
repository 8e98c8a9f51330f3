package materialize

import (
	"testing"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

func TestMaterializeSingleSourceOrdersFlags(t *testing.T) {
	cfg := &config.Config{
		Compiler:          "acpp",
		CompilerFlagsBase: "-std=c++17",
		Source:            "main.cpp",
		CompilerFlags:     []string{"-O1", "-O2"},
		CompilerFlagPool:  []string{"-funroll-loops"},
		CompilerParams: config.OrderedSpecs{
			{Key: "-DBLOCK_SIZE", Spec: config.ValueSpec{Values: []any{"64", "128"}}},
		},
		Env: config.OrderedSpecs{
			{Key: "OMP_NUM_THREADS", Spec: config.ValueSpec{Values: []any{"1", "2"}}},
		},
	}
	sp, err := space.Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	a := space.Assignment{
		"opt_level":       "-O2",
		"-funroll-loops":  "on",
		"-DBLOCK_SIZE":    "128",
		"OMP_NUM_THREADS": "2",
	}
	plan, runtime, err := Materialize(cfg, sp, a)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	wantFlags := []string{"-std=c++17", "-O2", "-funroll-loops", "-DBLOCK_SIZE=128"}
	if len(plan.Flags) != len(wantFlags) {
		t.Fatalf("flags = %v, want %v", plan.Flags, wantFlags)
	}
	for i := range wantFlags {
		if plan.Flags[i] != wantFlags[i] {
			t.Errorf("flags[%d] = %q, want %q", i, plan.Flags[i], wantFlags[i])
		}
	}
	if runtime.Env["OMP_NUM_THREADS"] != "2" {
		t.Errorf("runtime env OMP_NUM_THREADS = %q, want 2", runtime.Env["OMP_NUM_THREADS"])
	}
	if plan.Mode != "single_source" || plan.Source != "main.cpp" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestMaterializeSkipsInactiveToggleAndEnv(t *testing.T) {
	cfg := &config.Config{
		Compiler:         "acpp",
		Source:           "main.cpp",
		CompilerFlagPool: []string{"-funroll-loops"},
		Env: config.OrderedSpecs{
			{Key: "KMP_AFFINITY", Spec: config.ValueSpec{When: map[string]string{"-funroll-loops": "on"}, Values: []any{"scatter"}}},
		},
	}
	sp, err := space.Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	a := space.Assignment{
		"-funroll-loops": "off",
		"KMP_AFFINITY":   space.Inactive,
	}
	plan, runtime, err := Materialize(cfg, sp, a)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	for _, f := range plan.Flags {
		if f == "-funroll-loops" {
			t.Error("toggle off should not contribute a flag")
		}
	}
	if _, ok := runtime.Env["KMP_AFFINITY"]; ok {
		t.Error("inactive env variable should be omitted from the runtime plan")
	}
}

func TestRenderParamFlagBooleanValues(t *testing.T) {
	if got := renderParamFlag("-ffast-math", "true"); got != "-ffast-math" {
		t.Errorf("true param = %q, want bare flag", got)
	}
	if got := renderParamFlag("-ffast-math", "false"); got != "" {
		t.Errorf("false param = %q, want empty string", got)
	}
	if got := renderParamFlag("-DBLOCK_SIZE", "64"); got != "-DBLOCK_SIZE=64" {
		t.Errorf("categorical param = %q", got)
	}
}
