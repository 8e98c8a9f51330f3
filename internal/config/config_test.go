package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "study.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadMinimalSingleSource(t *testing.T) {
	path := writeTempConfig(t, `{
		"backend": "perf",
		"source": "main.cpp",
		"env": {"OMP_NUM_THREADS": ["1", "2", "4"]},
		"objectives": [{"metric": "cycles", "goal": "min"}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compiler != "acpp" {
		t.Errorf("default compiler = %q, want acpp", cfg.Compiler)
	}
	if cfg.Search.Sampler != "tpe" {
		t.Errorf("default sampler = %q, want tpe", cfg.Search.Sampler)
	}
	if cfg.Runs != 1 {
		t.Errorf("default runs = %d, want 1", cfg.Runs)
	}
	if len(cfg.Perf.Events) == 0 {
		t.Errorf("expected default perf events to be populated")
	}
}

func TestLoadRejectsSourceAndProjectTogether(t *testing.T) {
	path := writeTempConfig(t, `{
		"backend": "perf",
		"source": "main.cpp",
		"project": {"dir": "."},
		"env": {"X": ["1"]},
		"objectives": [{"metric": "cycles"}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when both source and project are set")
	}
}

func TestOrderedSpecsPreservesDeclarationOrder(t *testing.T) {
	path := writeTempConfig(t, `{
		"backend": "likwid",
		"source": "main.cpp",
		"likwid": {"group": "FLOPS_DP", "core_list": "0"},
		"env": {
			"FIRST": ["a", "b"],
			"SECOND": {"when": {"FIRST": "b"}, "values": ["x", "y"]},
			"THIRD": ["1", "2"]
		},
		"objectives": [{"metric": "FLOPS"}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"FIRST", "SECOND", "THIRD"}
	if len(cfg.Env) != len(want) {
		t.Fatalf("got %d env entries, want %d", len(cfg.Env), len(want))
	}
	for i, name := range want {
		if cfg.Env[i].Key != name {
			t.Errorf("env[%d] = %q, want %q", i, cfg.Env[i].Key, name)
		}
	}
	spec, ok := cfg.Env.Get("SECOND")
	if !ok || !spec.Guarded() || spec.When["FIRST"] != "b" {
		t.Errorf("SECOND guard not preserved: %+v", spec)
	}
}

func TestNormalizeArgsAcceptsStringOrList(t *testing.T) {
	path := writeTempConfig(t, `{
		"backend": "perf",
		"source": "main.cpp",
		"program_args": "--flag value",
		"env": {"X": ["1"]},
		"objectives": [{"metric": "cycles"}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"--flag", "value"}
	if len(cfg.ProgramArgs) != len(want) {
		t.Fatalf("got %v, want %v", cfg.ProgramArgs, want)
	}
	for i := range want {
		if cfg.ProgramArgs[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, cfg.ProgramArgs[i], want[i])
		}
	}
}

func TestMetricSpecAcceptsBareStringOrObject(t *testing.T) {
	path := writeTempConfig(t, `{
		"backend": "likwid",
		"source": "main.cpp",
		"likwid": {
			"group": "FLOPS_DP",
			"core_list": "0",
			"metrics": ["RUNTIME", {"name": "FLOPS", "agg": "median", "var": true}]
		},
		"env": {"X": ["1"]},
		"objectives": [{"metric": "FLOPS"}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Likwid.Metrics[0].Name != "RUNTIME" || cfg.Likwid.Metrics[0].Agg != "avg" {
		t.Errorf("bare string metric = %+v", cfg.Likwid.Metrics[0])
	}
	if cfg.Likwid.Metrics[1].Agg != "median" || !cfg.Likwid.Metrics[1].Var {
		t.Errorf("object metric = %+v", cfg.Likwid.Metrics[1])
	}
}
