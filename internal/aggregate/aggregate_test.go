package aggregate

import (
	"math"
	"testing"

	"github.com/HariAbram/scout/internal/config"
)

func TestReduceAggModes(t *testing.T) {
	samples := []float64{4, 1, 3, 2}
	cases := []struct {
		agg  string
		want float64
	}{
		{"avg", 2.5},
		{"median", 2.5},
		{"min", 1},
		{"max", 4},
	}
	for _, c := range cases {
		got, _, err := Reduce(samples, config.MetricSpec{Name: "m", Agg: c.agg})
		if err != nil {
			t.Fatalf("Reduce(%s): %v", c.agg, err)
		}
		if got != c.want {
			t.Errorf("Reduce(%s) = %v, want %v", c.agg, got, c.want)
		}
	}
}

func TestReduceEmptySamplesError(t *testing.T) {
	if _, _, err := Reduce(nil, config.MetricSpec{Name: "m"}); err == nil {
		t.Fatal("expected an error for an empty sample set")
	}
}

func TestReduceVariance(t *testing.T) {
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	_, variance, err := Reduce(samples, config.MetricSpec{Name: "m", Agg: "avg", Var: true})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if math.Abs(variance-4.571428571428571) > 1e-9 {
		t.Errorf("variance = %v, want ~4.5714", variance)
	}
}

func TestReduceAllMissingMetric(t *testing.T) {
	_, _, err := ReduceAll(map[string][]float64{"cycles": {1, 2}}, []config.MetricSpec{{Name: "instructions"}})
	if err == nil {
		t.Fatal("expected an error for a metric missing from the raw samples")
	}
}
