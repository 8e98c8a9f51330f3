package measure

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/procexec"
)

// PerfBackend drives `perf stat` as a black-box subprocess, grounded on
// original_source/src/metrics.py's perf_parse / measure_perf. perf
// writes its event table to stderr, not stdout.
type PerfBackend struct {
	cfg         *config.PerfConfig
	reservation *CoreReservation
}

// NewPerfBackend builds a perf-stat backend from its config block.
func NewPerfBackend(cfg *config.PerfConfig, reservation *CoreReservation) *PerfBackend {
	return &PerfBackend{cfg: cfg, reservation: reservation}
}

// Measure runs the binary `runs` times under perf stat and returns
// per-metric sample slices, one sample per run. CPI is derived as
// cycles/instructions whenever both events were requested, matching
// perf_parse's computed metric.
func (b *PerfBackend) Measure(ctx context.Context, binaryPath string, args []string, env map[string]string, runs int, timeout time.Duration) (map[string][]float64, error) {
	release := b.reservation.Acquire(b.cfg.CoreList)
	defer release()

	samples := map[string][]float64{}
	for i := 0; i < runs; i++ {
		perfArgs := []string{"stat", "-e", strings.Join(b.cfg.Events, ",")}
		if b.cfg.CoreList != "" {
			perfArgs = append(perfArgs, "-C", b.cfg.CoreList)
		}
		perfArgs = append(perfArgs, "--", binaryPath)
		perfArgs = append(perfArgs, args...)

		res, err := procexec.Run(ctx, "perf", perfArgs, procexec.Opts{Env: envSlice(env), Timeout: timeout})
		if err != nil {
			return nil, &RunError{Code: classifyExecError(res), Err: err}
		}

		parsed, err := parsePerfStat(res.Stderr)
		if err != nil {
			return nil, &RunError{Code: "metric_missing", Err: err}
		}
		for _, event := range b.cfg.Events {
			v, ok := parsed[event]
			if !ok {
				return nil, &RunError{Code: "metric_missing", Err: fmt.Errorf("event %q not found in perf stat output", event)}
			}
			samples[event] = append(samples[event], v)
		}
		if cycles, ok := parsed["cycles"]; ok {
			if instructions, ok2 := parsed["instructions"]; ok2 && instructions != 0 {
				samples["CPI"] = append(samples["CPI"], cycles/instructions)
			}
		}
	}
	return samples, nil
}

// perfLineRe matches a perf stat event line such as:
//
//	       1,234,567      cycles
//	         987,654      instructions              #    0.80  insn per cycle
var perfLineRe = regexp.MustCompile(`^\s*([0-9.,]+)\s+([A-Za-z0-9_\-./:]+)`)

func parsePerfStat(stderr string) (map[string]float64, error) {
	result := map[string]float64{}
	for _, line := range strings.Split(stderr, "\n") {
		m := perfLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		valueStr := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			continue
		}
		result[m[2]] = v
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no parseable event lines in perf stat output")
	}
	return result, nil
}

// RunError classifies a measurement-stage failure per spec.md §7.
type RunError struct {
	Code string // "run_failed" | "run_timeout" | "metric_missing"
	Err  error
}

func (e *RunError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

func classifyExecError(res *procexec.Result) string {
	if res != nil && res.TimedOut {
		return "run_timeout"
	}
	return "run_failed"
}
