package archive

import (
	"path/filepath"
	"testing"

	"github.com/HariAbram/scout/internal/space"
)

func TestOpenAppendCloseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trials.csv")

	a, err := Open(path, []string{"opt_level"}, []string{"cycles"}, nil, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := TrialRecord{
		TrialIndex: 0,
		Assignment: space.Assignment{"opt_level": "-O2"},
		Metrics:    map[string]float64{"cycles": 12345},
		Feasible:   true,
	}
	if err := a.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, header, err := ReadCompleted(path)
	if err != nil {
		t.Fatalf("ReadCompleted: %v", err)
	}
	if len(header) == 0 {
		t.Fatal("expected a non-empty header")
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Metrics["cycles"] != 12345 {
		t.Errorf("cycles = %v, want 12345", records[0].Metrics["cycles"])
	}
}

func TestOpenDetectsHeaderMismatchOnResume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trials.csv")

	a, err := Open(path, []string{"opt_level"}, []string{"cycles"}, nil, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := a.Append(TrialRecord{TrialIndex: 0, Assignment: space.Assignment{"opt_level": "-O2"}, Metrics: map[string]float64{"cycles": 1}, Feasible: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = Open(path, []string{"opt_level", "unroll"}, []string{"cycles"}, nil, "")
	if err == nil {
		t.Fatal("expected an archive_error on header mismatch")
	}
}

func TestRecordFeasibleFalseOmitsMetricColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trials.csv")

	a, err := Open(path, []string{"opt_level"}, []string{"cycles"}, nil, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := TrialRecord{TrialIndex: 0, Assignment: space.Assignment{"opt_level": "-O2"}, Feasible: false, ErrorCode: "build_failed", ErrorMsg: "compile error"}
	if err := a.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	a.Close()

	records, _, err := ReadCompleted(path)
	if err != nil {
		t.Fatalf("ReadCompleted: %v", err)
	}
	if records[0].Feasible {
		t.Error("expected Feasible = false to round-trip")
	}
	if _, ok := records[0].Metrics["cycles"]; ok {
		t.Error("expected an infeasible row to leave the cycles column empty")
	}
}
