// Package build implements the Builder component of spec.md §4.3:
// turning a materialize.BuildPlan into a compiled artifact via a single
// compiler invocation, make, or cmake, surfacing build_failed and
// build_timeout per spec.md §7.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/HariAbram/scout/internal/materialize"
	"github.com/HariAbram/scout/internal/procexec"
)

// Error classifies a build failure per spec.md §7.
type Error struct {
	Code   string // "build_failed" | "build_timeout"
	Stdout string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Artifact is the product of a successful build.
type Artifact struct {
	BinaryPath string
	WorkDir    string // non-empty for cmake builds, so the caller can clean it up
}

// Build executes plan and returns the resulting binary's path.
func Build(ctx context.Context, plan *materialize.BuildPlan, timeout time.Duration) (*Artifact, error) {
	switch plan.Mode {
	case "single_source":
		return buildSingleSource(ctx, plan, timeout)
	case "make":
		return buildMake(ctx, plan, timeout)
	case "cmake":
		return buildCMake(ctx, plan, timeout)
	default:
		return nil, &Error{Code: "build_failed", Err: fmt.Errorf("unknown build mode %q", plan.Mode)}
	}
}

func buildSingleSource(ctx context.Context, plan *materialize.BuildPlan, timeout time.Duration) (*Artifact, error) {
	args := append(nonEmpty(plan.Flags), plan.Source, "-o", plan.Output)
	res, err := procexec.Run(ctx, plan.Compiler, args, procexec.Opts{Timeout: timeout})
	if err != nil {
		return nil, buildErrFrom(res, err)
	}
	abs, err := filepath.Abs(plan.Output)
	if err != nil {
		return nil, &Error{Code: "build_failed", Err: err}
	}
	return &Artifact{BinaryPath: abs}, nil
}

func buildMake(ctx context.Context, plan *materialize.BuildPlan, timeout time.Duration) (*Artifact, error) {
	// Clear stale .o files from a prior trial's flag combination before
	// building, matching original_source/src/build.py's compile_project,
	// which runs "make clean" ahead of every build.
	if res, err := procexec.Run(ctx, "make", []string{"clean"}, procexec.Opts{Dir: plan.ProjectDir, Timeout: timeout}); err != nil {
		return nil, buildErrFrom(res, err)
	}

	args := []string{}
	if plan.Target != "" {
		args = append(args, plan.Target)
	}
	for k, v := range plan.MakeVars {
		args = append(args, fmt.Sprintf("%s=%s", k, v))
	}
	if plan.ExtraCFlags != "" {
		args = append(args, "EXTRA_CFLAGS="+plan.ExtraCFlags)
	}
	res, err := procexec.Run(ctx, "make", args, procexec.Opts{Dir: plan.ProjectDir, Timeout: timeout})
	if err != nil {
		return nil, buildErrFrom(res, err)
	}
	bin := plan.Target
	if bin == "" {
		bin = "a.out"
	}
	return &Artifact{BinaryPath: filepath.Join(plan.ProjectDir, bin)}, nil
}

func buildCMake(ctx context.Context, plan *materialize.BuildPlan, timeout time.Duration) (*Artifact, error) {
	buildDir := filepath.Join(plan.ProjectDir, "cmake_"+uuid.New().String()[:8])
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, &Error{Code: "build_failed", Err: err}
	}

	configArgs := []string{".."}
	for k, v := range plan.CMakeDefs {
		configArgs = append(configArgs, fmt.Sprintf("-D%s=%s", k, v))
	}
	if plan.ExtraCFlags != "" {
		configArgs = append(configArgs, "-DCMAKE_CXX_FLAGS="+plan.ExtraCFlags, "-DCMAKE_C_FLAGS="+plan.ExtraCFlags)
	}
	if res, err := procexec.Run(ctx, "cmake", configArgs, procexec.Opts{Dir: buildDir, Timeout: timeout}); err != nil {
		os.RemoveAll(buildDir)
		return nil, buildErrFrom(res, err)
	}

	buildArgs := []string{"--build", "."}
	if plan.Target != "" {
		buildArgs = append(buildArgs, "--target", plan.Target)
	}
	res, err := procexec.Run(ctx, "cmake", buildArgs, procexec.Opts{Dir: buildDir, Timeout: timeout})
	if err != nil {
		os.RemoveAll(buildDir)
		return nil, buildErrFrom(res, err)
	}

	bin := plan.Target
	if bin == "" {
		bin = "a.out"
	}
	return &Artifact{BinaryPath: filepath.Join(buildDir, bin), WorkDir: buildDir}, nil
}

func buildErrFrom(res *procexec.Result, err error) *Error {
	code := "build_failed"
	if res != nil && res.TimedOut {
		code = "build_timeout"
	}
	e := &Error{Code: code, Err: err}
	if res != nil {
		e.Stdout, e.Stderr = res.Stdout, res.Stderr
	}
	return e
}

func nonEmpty(flags []string) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
