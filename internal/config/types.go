// Package config parses the JSON Study Definition that drives a SCOuT
// exploration: the backend, the build description, the flag/param/env
// search dimensions, the objectives, and the search+archive settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Config is the immutable Study Definition loaded from a JSON file.
type Config struct {
	Backend string `json:"backend"`

	// Build description: exactly one of Source or Project is set.
	Source  string   `json:"source"`
	Project *Project `json:"project"`

	Compiler           string `json:"compiler"`
	CompilerFlagsBase  string `json:"compiler_flags_base"`
	OutputBasename     string `json:"output_basename"`

	ProgramArgs []string `json:"program_args"`

	CompilerFlags    []string      `json:"compiler_flags"`
	CompilerFlagPool []string      `json:"compiler_flag_pool"`
	CompilerParams   OrderedSpecs  `json:"compiler_params"`

	Env OrderedSpecs `json:"env"`

	Objectives []Objective `json:"objectives"`

	Search SearchSpec `json:"search"`

	Likwid *LikwidConfig `json:"likwid"`
	Perf   *PerfConfig   `json:"perf"`

	Runs int `json:"runs"`

	CSVLog    string `json:"csv_log"`
	SQLiteLog string `json:"sqlite_log"`
}

// Project describes a Make or CMake build directory (project mode).
type Project struct {
	Dir         string            `json:"dir"`
	BuildSystem string            `json:"build_system"` // "make" | "cmake"
	Target      string            `json:"target"`
	MakeVars    map[string]string `json:"make_vars"`
	CMakeDefs   map[string]string `json:"cmake_defs"`
}

// Objective names one metric SCOuT should steer the search toward.
type Objective struct {
	Metric string `json:"metric"`
	Goal   string `json:"goal"` // "min" | "max"
}

// SearchSpec selects the optimizer back-end and its knobs.
type SearchSpec struct {
	Sampler        string `json:"sampler"` // "tpe" | "nsga3" | "rf"
	PopulationSize int    `json:"population_size"`
	RandomSeed     int64  `json:"random_seed"`
	WarmupTrials   int    `json:"warmup_trials"`
}

// MetricSpec names a backend-emitted metric and how repeated runs of it
// should be aggregated.
type MetricSpec struct {
	Name string `json:"name"`
	Agg  string `json:"agg"` // "avg" | "median" | "min" | "max"
	Var  bool   `json:"var"`
}

// UnmarshalJSON accepts either a bare metric name string or the full object
// form, matching original_source/src/config.py's MetricSpec.from_any.
func (m *MetricSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		m.Name = name
		m.Agg = "avg"
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		Agg  string `json:"agg"`
		Var  bool   `json:"var"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("metrics entry must be a string or an object: %w", err)
	}
	if obj.Name == "" {
		return fmt.Errorf("metrics entry object missing 'name'")
	}
	agg := obj.Agg
	if agg == "" {
		agg = "avg"
	}
	m.Name, m.Agg, m.Var = obj.Name, agg, obj.Var
	return nil
}

// LikwidConfig configures the LIKWID measurement backend.
type LikwidConfig struct {
	Group    string       `json:"group"`
	Events   []string     `json:"events"`
	Metrics  []MetricSpec `json:"metrics"`
	CoreList string       `json:"core_list"`
}

// PerfConfig configures the perf-stat measurement backend.
type PerfConfig struct {
	Events   []string `json:"events"`
	CoreList string   `json:"core_list"`
}

// ValueSpec is either an unconditional list of candidate values, or a
// guarded block `{"when": {...}, "values": [...]}`. It backs both
// CompilerParams and Env entries.
type ValueSpec struct {
	Values []any
	When   map[string]string // nil when unconditional
}

func (v *ValueSpec) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		v.Values = list
		v.When = nil
		return nil
	}
	var obj struct {
		When   map[string]string `json:"when"`
		Values []any              `json:"values"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("value spec must be a list or {when, values} object: %w", err)
	}
	if len(obj.Values) == 0 {
		return fmt.Errorf("guarded value spec must declare a non-empty 'values' list")
	}
	v.Values = obj.Values
	v.When = obj.When
	return nil
}

// Guarded reports whether this entry only activates conditionally.
func (v ValueSpec) Guarded() bool {
	return v.When != nil
}

// ParamEntry is one key of an OrderedSpecs object, preserving its position
// in the source JSON.
type ParamEntry struct {
	Key  string
	Spec ValueSpec
}

// OrderedSpecs decodes a JSON object of {name: ValueSpec} pairs while
// preserving declaration order, since guards may only reference variables
// that lexically precede them (spec invariant) and the Materializer's
// deterministic ordering requirement depends on it. A plain Go map loses
// this order, so compiler_params and env are decoded through this type
// instead.
type OrderedSpecs []ParamEntry

func (o *OrderedSpecs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	var out OrderedSpecs
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decoding value for %q: %w", key, err)
		}
		var spec ValueSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("decoding value for %q: %w", key, err)
		}
		out = append(out, ParamEntry{Key: key, Spec: spec})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*o = out
	return nil
}

// Get returns the spec for key and whether it was present.
func (o OrderedSpecs) Get(key string) (ValueSpec, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Spec, true
		}
	}
	return ValueSpec{}, false
}
