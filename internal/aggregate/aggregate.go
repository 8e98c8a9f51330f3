// Package aggregate implements the Metric Aggregator of spec.md §4.4:
// reducing a metric's repeated-run samples to a single scalar per
// configured aggregation mode, matching
// original_source/src/metrics.py's averaging/median/min/max reduction.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/HariAbram/scout/internal/config"
)

// Reduce collapses samples according to spec (avg/median/min/max),
// optionally appending the sample variance as a second return value when
// spec.Var is set.
func Reduce(samples []float64, spec config.MetricSpec) (value float64, variance float64, err error) {
	if len(samples) == 0 {
		return 0, 0, fmt.Errorf("metric %q has no samples to aggregate", spec.Name)
	}
	switch spec.Agg {
	case "", "avg":
		value = mean(samples)
	case "median":
		value = median(samples)
	case "min":
		value = min(samples)
	case "max":
		value = max(samples)
	default:
		return 0, 0, fmt.Errorf("metric %q: unknown aggregation %q", spec.Name, spec.Agg)
	}
	if spec.Var {
		variance = sampleVariance(samples)
	}
	return value, variance, nil
}

// ReduceAll aggregates every metric named in specs out of the raw
// per-run samples collected for a single trial.
func ReduceAll(raw map[string][]float64, specs []config.MetricSpec) (map[string]float64, map[string]float64, error) {
	values := map[string]float64{}
	variances := map[string]float64{}
	for _, spec := range specs {
		samples, ok := raw[spec.Name]
		if !ok {
			return nil, nil, fmt.Errorf("metric %q missing from measurement output", spec.Name)
		}
		v, variance, err := Reduce(samples, spec)
		if err != nil {
			return nil, nil, err
		}
		values[spec.Name] = v
		if spec.Var {
			variances[spec.Name] = variance
		}
	}
	return values, variances, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func min(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func max(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// sampleVariance returns the unbiased (n-1) sample variance, or 0 for a
// single-sample run where variance is undefined.
func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return sum / float64(len(xs)-1)
}
