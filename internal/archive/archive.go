// Package archive implements the Archive of spec.md §4.7: an append-only
// CSV system of record for every Trial Record, with an optional SQLite
// mirror. The CSV writer follows
// signalnine-thunderdome/internal/result/storage.go's
// create-then-append persistence shape; the SQLite mirror is grounded on
// AR-UNIT-exp/main/main.go's database/sql + modernc.org/sqlite usage, and
// reinstates the sqlite_log field original_source/src/config.py carried
// that the distilled spec dropped.
package archive

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/HariAbram/scout/internal/space"
)

// TrialRecord is one completed or failed trial, ready to append.
type TrialRecord struct {
	TrialIndex int
	Assignment space.Assignment
	Metrics    map[string]float64
	Variances  map[string]float64
	Feasible   bool
	ErrorCode  string
	ErrorMsg   string
	DurationMS int64
}

// Error classifies an archive-stage failure per spec.md §7.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("archive_error: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Archive is the append-only CSV system of record, with an optional
// SQLite mirror opened alongside it.
type Archive struct {
	path         string
	header       []string
	varNames     []string
	metricNames  []string
	varianceCols []string
	f            *os.File
	w            *csv.Writer
	db           *sql.DB
}

// Open creates (or appends to, for --resume) the CSV archive at path, and
// opens the optional SQLite mirror at sqlitePath when non-empty.
func Open(path string, varNames, metricNames, varianceCols []string, sqlitePath string) (*Archive, error) {
	header := buildHeader(varNames, metricNames, varianceCols)

	existing, statErr := os.Stat(path)
	appending := statErr == nil && existing.Size() > 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("opening archive %s: %w", path, err)}
	}

	a := &Archive{path: path, header: header, varNames: varNames, metricNames: metricNames, varianceCols: varianceCols, f: f}

	if appending {
		if err := a.checkHeaderCompatible(); err != nil {
			f.Close()
			return nil, err
		}
		a.w = csv.NewWriter(f)
	} else {
		a.w = csv.NewWriter(f)
		if err := a.w.Write(header); err != nil {
			f.Close()
			return nil, &Error{Err: fmt.Errorf("writing archive header: %w", err)}
		}
		a.w.Flush()
	}

	if sqlitePath != "" {
		db, err := openSQLite(sqlitePath, header)
		if err != nil {
			f.Close()
			return nil, err
		}
		a.db = db
	}

	return a, nil
}

// checkHeaderCompatible fails fast with archive_error if an existing CSV
// being resumed into has a header that doesn't match the current Search
// Space, per SPEC_FULL.md's resumption decision.
func (a *Archive) checkHeaderCompatible() error {
	f, err := os.Open(a.path)
	if err != nil {
		return &Error{Err: err}
	}
	defer f.Close()
	r := csv.NewReader(f)
	got, err := r.Read()
	if err != nil {
		return &Error{Err: fmt.Errorf("reading existing archive header: %w", err)}
	}
	if len(got) != len(a.header) {
		return &Error{Err: fmt.Errorf("archive header mismatch: existing has %d columns, current study has %d", len(got), len(a.header))}
	}
	for i := range got {
		if got[i] != a.header[i] {
			return &Error{Err: fmt.Errorf("archive header mismatch at column %d: existing %q, current %q", i, got[i], a.header[i])}
		}
	}
	return nil
}

// Append writes one Trial Record row and flushes, since the Archive is
// the system of record and must survive a crash between trials.
func (a *Archive) Append(rec TrialRecord) error {
	row := a.renderRow(rec)
	if err := a.w.Write(row); err != nil {
		return &Error{Err: fmt.Errorf("appending trial %d: %w", rec.TrialIndex, err)}
	}
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		return &Error{Err: err}
	}
	if a.db != nil {
		if err := a.mirrorToSQLite(rec, row); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) renderRow(rec TrialRecord) []string {
	row := make([]string, len(a.header))
	row[0] = strconv.Itoa(rec.TrialIndex)
	col := 1
	for _, name := range a.varNames {
		if v := rec.Assignment[name]; v != space.Inactive {
			row[col] = v
		}
		col++
	}
	for _, name := range a.metricNames {
		if rec.Feasible {
			row[col] = strconv.FormatFloat(rec.Metrics[name], 'g', -1, 64)
		}
		col++
	}
	for _, name := range a.varianceCols {
		if rec.Feasible {
			row[col] = strconv.FormatFloat(rec.Variances[name], 'g', -1, 64)
		}
		col++
	}
	row[col] = strconv.FormatBool(rec.Feasible)
	col++
	row[col] = rec.ErrorCode
	col++
	row[col] = rec.ErrorMsg
	col++
	row[col] = strconv.FormatInt(rec.DurationMS, 10)
	return row
}

// Close flushes and closes both the CSV file and (if open) the SQLite
// mirror.
func (a *Archive) Close() error {
	a.w.Flush()
	var errs []error
	if err := a.w.Error(); err != nil {
		errs = append(errs, err)
	}
	if err := a.f.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &Error{Err: errs[0]}
	}
	return nil
}

func buildHeader(varNames, metricNames, varianceCols []string) []string {
	header := []string{"trial_index"}
	header = append(header, varNames...)
	header = append(header, metricNames...)
	for _, v := range varianceCols {
		header = append(header, v+"_variance")
	}
	header = append(header, "feasible", "error_code", "error_message", "duration_ms")
	return header
}

// ReadCompleted returns every row of an existing archive, feasible or
// not, sorted by trial index, for `scout run --resume` to re-seed an
// optimizer.
func ReadCompleted(path string) ([]TrialRecord, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &Error{Err: err}
	}
	defer f.Close()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, &Error{Err: err}
	}
	index := map[string]int{}
	for i, h := range header {
		index[h] = i
	}

	var records []TrialRecord
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rec := TrialRecord{Assignment: space.Assignment{}}
		rec.TrialIndex, _ = strconv.Atoi(row[index["trial_index"]])
		rec.Feasible, _ = strconv.ParseBool(row[index["feasible"]])
		rec.Metrics = map[string]float64{}
		for h, i := range index {
			switch h {
			case "trial_index", "feasible", "error_code", "error_message", "duration_ms":
			default:
				if row[i] != "" {
					if v, err := strconv.ParseFloat(row[i], 64); err == nil {
						rec.Metrics[h] = v
					} else {
						rec.Assignment[h] = row[i]
					}
				}
			}
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TrialIndex < records[j].TrialIndex })
	return records, header, nil
}
