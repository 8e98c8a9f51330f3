package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// rawConfig mirrors Config but lets program_args arrive as either a string
// or a list of strings, matching original_source/src/misc.py's
// _normalize_args.
type rawConfig struct {
	Config
	ProgramArgs json.RawMessage `json:"program_args"`
}

// Load reads and validates a Study Definition from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg := raw.Config

	args, err := normalizeArgs(raw.ProgramArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: program_args: %w", path, err)
	}
	cfg.ProgramArgs = args

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.Backend != "likwid" && cfg.Backend != "perf" {
		return fmt.Errorf("backend must be 'likwid' or 'perf', got %q", cfg.Backend)
	}

	if (cfg.Source == "") == (cfg.Project == nil) {
		return fmt.Errorf("provide exactly one of 'source' or 'project'")
	}
	if cfg.Project != nil {
		switch cfg.Project.BuildSystem {
		case "", "cmake":
			cfg.Project.BuildSystem = "cmake"
		case "make":
		default:
			return fmt.Errorf("project.build_system must be 'make' or 'cmake', got %q", cfg.Project.BuildSystem)
		}
		if cfg.Project.Dir == "" {
			return fmt.Errorf("project.dir is required")
		}
	}
	if cfg.Compiler == "" {
		cfg.Compiler = "acpp"
	}

	if len(cfg.Env) == 0 {
		return fmt.Errorf("config must contain a non-empty 'env' object")
	}

	if len(cfg.Objectives) == 0 {
		return fmt.Errorf("at least one objective is required")
	}
	for i, o := range cfg.Objectives {
		if o.Metric == "" {
			return fmt.Errorf("objectives[%d]: metric is required", i)
		}
		goal := strings.ToLower(o.Goal)
		if goal == "" {
			goal = "min"
		}
		if goal != "min" && goal != "max" {
			return fmt.Errorf("objectives[%d]: goal must be 'min' or 'max', got %q", i, o.Goal)
		}
		cfg.Objectives[i].Goal = goal
	}

	switch cfg.Search.Sampler {
	case "":
		cfg.Search.Sampler = "tpe"
	case "tpe", "nsga3", "rf":
	default:
		return fmt.Errorf("search.sampler must be one of tpe, nsga3, rf, got %q", cfg.Search.Sampler)
	}
	if cfg.Search.PopulationSize <= 0 {
		cfg.Search.PopulationSize = 50
	}
	if cfg.Search.WarmupTrials <= 0 {
		cfg.Search.WarmupTrials = 10
	}

	if cfg.Backend == "perf" {
		if cfg.Perf == nil {
			cfg.Perf = &PerfConfig{Events: []string{"cycles", "instructions"}}
		}
		if len(cfg.Perf.Events) == 0 {
			cfg.Perf.Events = []string{"cycles", "instructions"}
		}
	}
	if cfg.Backend == "likwid" {
		if cfg.Likwid == nil {
			return fmt.Errorf("backend 'likwid' requires a 'likwid' block")
		}
		if cfg.Likwid.Group == "" && len(cfg.Likwid.Events) == 0 {
			return fmt.Errorf("likwid block needs either 'group' or 'events'")
		}
		if len(cfg.Likwid.Metrics) == 0 {
			names := cfg.Likwid.Events
			if len(names) == 0 {
				names = []string{cfg.Likwid.Group}
			}
			for _, n := range names {
				cfg.Likwid.Metrics = append(cfg.Likwid.Metrics, MetricSpec{Name: n, Agg: "avg"})
			}
		}
	}

	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}

	return nil
}

// normalizeArgs accepts program_args as a JSON string, a JSON list of
// strings, or an absent field, matching the flexibility of the original
// Python config loader's _normalize_args.
func normalizeArgs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return splitWords(asString), nil
	}
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		var merged []string
		for _, elem := range asList {
			merged = append(merged, splitWords(elem)...)
		}
		return merged, nil
	}
	return nil, fmt.Errorf("program_args must be a string or a list of strings")
}

// splitWords is a minimal shell-word splitter: whitespace-separated tokens,
// with single or double quoted runs kept intact.
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	var quote byte
	inWord := false
	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == ' ' || c == '\t':
			flush()
		default:
			inWord = true
			cur.WriteByte(c)
		}
	}
	flush()
	return words
}
