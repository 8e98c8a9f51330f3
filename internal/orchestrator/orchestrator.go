// Package orchestrator binds the Space Compiler, Candidate Materializer,
// Builder, Runner/Measurement backend, Metric Aggregator, Optimizer
// Façade, and Archive into the trial loop of spec.md §4.6: materialize,
// build, measure, aggregate, report, archive, repeat. Error routing
// (fatal vs. penalize-and-continue) follows spec.md §7.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HariAbram/scout/internal/aggregate"
	"github.com/HariAbram/scout/internal/archive"
	"github.com/HariAbram/scout/internal/build"
	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/logging"
	"github.com/HariAbram/scout/internal/materialize"
	"github.com/HariAbram/scout/internal/measure"
	"github.com/HariAbram/scout/internal/optimizer"
	"github.com/HariAbram/scout/internal/space"
)

// BuildTimeout and RunTimeout are the fixed per-trial subprocess
// timeouts; the config format has no per-study override for them.
const (
	BuildTimeout = 5 * time.Minute
	RunTimeout   = 2 * time.Minute
)

// Orchestrator runs a full study: `trials` suggest/materialize/build/
// measure/aggregate/report/archive iterations.
type Orchestrator struct {
	cfg     *config.Config
	sp      *space.Space
	facade  *optimizer.Facade
	archive *archive.Archive
	backend measure.Backend
	metrics []config.MetricSpec
}

// New wires every component from a loaded Study Definition. When
// resumePath is non-empty, the named archive's completed rows are
// replayed through the optimizer before the first new Suggest, per
// SPEC_FULL.md §10.2's resumption decision.
func New(cfg *config.Config, resumePath string) (*Orchestrator, error) {
	sp, err := space.Compile(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	facade, err := optimizer.New(sp, cfg.Objectives, cfg.Search)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	reservation := measure.NewCoreReservation()
	backend, err := measure.New(cfg, reservation)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	metrics := metricSpecsFor(cfg)

	varNames := make([]string, len(sp.Variables))
	for i, v := range sp.Variables {
		varNames[i] = v.Name
	}
	metricNames := make([]string, len(metrics))
	var varianceCols []string
	for i, m := range metrics {
		metricNames[i] = m.Name
		if m.Var {
			varianceCols = append(varianceCols, m.Name)
		}
	}

	archivePath := cfg.CSVLog
	if resumePath != "" {
		archivePath = resumePath
	}
	if archivePath == "" {
		archivePath = "scout_archive.csv"
	}
	arc, err := archive.Open(archivePath, varNames, metricNames, varianceCols, cfg.SQLiteLog)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{cfg: cfg, sp: sp, facade: facade, archive: arc, backend: backend, metrics: metrics}

	if resumePath != "" {
		if err := o.seedFromArchive(resumePath); err != nil {
			arc.Close()
			return nil, err
		}
	}

	return o, nil
}

func (o *Orchestrator) seedFromArchive(path string) error {
	records, _, err := archive.ReadCompleted(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		objectives := make([]float64, len(o.cfg.Objectives))
		for i, obj := range o.cfg.Objectives {
			objectives[i] = rec.Metrics[obj.Metric]
		}
		o.facade.Seed(rec.Assignment, objectives, rec.Feasible)
	}
	logging.Get().WithField("replayed", len(records)).Info("resumed archive replayed into optimizer")
	return nil
}

// Run executes `trials` iterations of the pipeline.
func (o *Orchestrator) Run(ctx context.Context, trials int) error {
	log := logging.Get()
	defer o.archive.Close()

	for t := 0; t < trials; t++ {
		start := time.Now()
		a := o.facade.Suggest()

		rec := archive.TrialRecord{TrialIndex: t, Assignment: a}

		plan, runtime, err := materialize.Materialize(o.cfg, o.sp, a)
		if err != nil {
			if arcErr := o.recordFailure(&rec, err, start, log, t); arcErr != nil {
				return arcErr
			}
			continue
		}

		artifact, err := build.Build(ctx, plan, BuildTimeout)
		if err != nil {
			if arcErr := o.recordFailure(&rec, err, start, log, t); arcErr != nil {
				return arcErr
			}
			continue
		}

		raw, measureErr := o.backend.Measure(ctx, artifact.BinaryPath, runtime.ProgramArgs, runtime.Env, o.cfg.Runs, RunTimeout)
		var values, variances map[string]float64
		var aggErr error
		if measureErr == nil {
			values, variances, aggErr = aggregate.ReduceAll(raw, o.metrics)
		}
		if artifact.WorkDir != "" {
			os.RemoveAll(artifact.WorkDir)
		}
		if measureErr != nil {
			if arcErr := o.recordFailure(&rec, measureErr, start, log, t); arcErr != nil {
				return arcErr
			}
			continue
		}
		if aggErr != nil {
			if arcErr := o.recordFailure(&rec, aggErr, start, log, t); arcErr != nil {
				return arcErr
			}
			continue
		}

		objectiveValues := make([]float64, len(o.cfg.Objectives))
		for i, obj := range o.cfg.Objectives {
			objectiveValues[i] = values[obj.Metric]
		}
		o.facade.Report(a, objectiveValues)

		rec.Feasible = true
		rec.Metrics = values
		rec.Variances = variances
		rec.DurationMS = time.Since(start).Milliseconds()
		if err := o.archive.Append(rec); err != nil {
			return err
		}
		log.WithField("trial", t).WithField("objectives", objectiveValues).Info("trial completed")
	}
	return nil
}

func (o *Orchestrator) recordFailure(rec *archive.TrialRecord, err error, start time.Time, log *logrus.Logger, t int) error {
	rec.Feasible = false
	rec.ErrorCode, rec.ErrorMsg = classify(err)
	rec.DurationMS = time.Since(start).Milliseconds()
	o.facade.ReportInfeasible(rec.Assignment)
	if appendErr := o.archive.Append(*rec); appendErr != nil {
		log.WithError(appendErr).Error("failed to archive a penalized trial")
		return appendErr
	}
	log.WithField("trial", t).WithField("error_code", rec.ErrorCode).Warn("trial failed, penalized and continuing")
	return nil
}

func classify(err error) (code, message string) {
	var buildErr *build.Error
	if errors.As(err, &buildErr) {
		return buildErr.Code, buildErr.Error()
	}
	var runErr *measure.RunError
	if errors.As(err, &runErr) {
		return runErr.Code, runErr.Error()
	}
	var matErr *materialize.Error
	if errors.As(err, &matErr) {
		return "materialization_error", matErr.Error()
	}
	return "metric_missing", err.Error()
}

func metricSpecsFor(cfg *config.Config) []config.MetricSpec {
	if cfg.Backend == "likwid" {
		return cfg.Likwid.Metrics
	}
	specs := make([]config.MetricSpec, 0, len(cfg.Perf.Events)+1)
	for _, e := range cfg.Perf.Events {
		specs = append(specs, config.MetricSpec{Name: e, Agg: "avg"})
	}
	hasCycles, hasInstr := false, false
	for _, e := range cfg.Perf.Events {
		if e == "cycles" {
			hasCycles = true
		}
		if e == "instructions" {
			hasInstr = true
		}
	}
	if hasCycles && hasInstr {
		specs = append(specs, config.MetricSpec{Name: "CPI", Agg: "avg"})
	}
	return specs
}

// ConfigError marks a fatal configuration failure at Compile/New time
// (spec.md §7's config_error), which aborts the whole study rather than
// penalizing a single trial.
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return fmt.Sprintf("config_error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }
