// Package materialize implements the Candidate Materializer of spec.md
// §4.2: turning an Assignment into a deterministic Build Plan (compiler
// or build-tool invocation) and Runtime Plan (environment variables),
// skipping every guarded-inactive variable.
package materialize

import (
	"fmt"
	"path/filepath"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

// BuildPlan describes exactly how to produce one build artifact.
type BuildPlan struct {
	Mode string // "single_source" | "make" | "cmake"

	Compiler string
	Source   string
	Output   string
	Flags    []string // compiler_flags_base + opt level + pool + params, in order

	ProjectDir  string
	Target      string
	MakeVars    map[string]string
	CMakeDefs   map[string]string
	ExtraCFlags string // joined Flags, for make's EXTRA_CFLAGS / cmake's CMAKE_CXX_FLAGS
}

// RuntimePlan is the environment SCOuT injects into the measured run.
type RuntimePlan struct {
	Env         map[string]string
	ProgramArgs []string
}

// Error classifies a materialization failure per spec.md §7's
// materialization_error code; unlike a config_error at Compile/New time,
// it penalizes the offending trial rather than aborting the study.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("materialization_error: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Materialize reads the active values out of a resolved Assignment, in
// the Search Space's declaration order, and renders them into a
// BuildPlan and RuntimePlan.
func Materialize(cfg *config.Config, sp *space.Space, a space.Assignment) (*BuildPlan, *RuntimePlan, error) {
	var flags []string
	if cfg.CompilerFlagsBase != "" {
		flags = append(flags, cfg.CompilerFlagsBase)
	}

	env := map[string]string{}

	for i := range sp.Variables {
		v := &sp.Variables[i]
		value, ok := a[v.Name]
		if !ok || value == space.Inactive {
			continue
		}
		switch v.Kind {
		case space.KindChoice:
			flags = append(flags, value)
		case space.KindToggle:
			if value == "on" {
				flags = append(flags, v.ParamKey)
			}
		case space.KindParam:
			flags = append(flags, renderParamFlag(v.ParamKey, value))
		case space.KindEnv:
			env[v.ParamKey] = value
		}
	}

	plan := &BuildPlan{
		Compiler: cfg.Compiler,
		Flags:    flags,
	}

	switch {
	case cfg.Source != "":
		plan.Mode = "single_source"
		plan.Source = cfg.Source
		plan.Output = cfg.OutputBasename
		if plan.Output == "" {
			base := filepath.Base(cfg.Source)
			plan.Output = trimExt(base)
		}
	case cfg.Project != nil:
		plan.Mode = cfg.Project.BuildSystem
		plan.ProjectDir = cfg.Project.Dir
		plan.Target = cfg.Project.Target
		plan.MakeVars = cloneMap(cfg.Project.MakeVars)
		plan.CMakeDefs = cloneMap(cfg.Project.CMakeDefs)
	default:
		return nil, nil, &Error{Err: fmt.Errorf("config has neither source nor project")}
	}
	plan.ExtraCFlags = joinFlags(flags)

	runtime := &RuntimePlan{
		Env:         env,
		ProgramArgs: append([]string{}, cfg.ProgramArgs...),
	}

	return plan, runtime, nil
}

// renderParamFlag turns a categorical compiler_params entry into a
// command-line token. Boolean-ish "true"/"false" values render as a bare
// flag (present/absent) rather than "key=true", matching how the
// original Python's suggest_compiler_flags treated on/off params.
func renderParamFlag(key, value string) string {
	switch value {
	case "true":
		return key
	case "false":
		return ""
	default:
		return fmt.Sprintf("%s=%s", key, value)
	}
}

func joinFlags(flags []string) string {
	out := ""
	for _, f := range flags {
		if f == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += f
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
