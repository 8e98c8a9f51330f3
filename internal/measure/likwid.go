package measure

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/procexec"
)

func osEnviron() []string { return os.Environ() }

// LikwidBackend drives likwid-perfctr as a black-box subprocess and
// parses its table output, grounded on original_source/src/metrics.py's
// likwid_parse / measure_likwid.
type LikwidBackend struct {
	cfg         *config.LikwidConfig
	reservation *CoreReservation
}

// NewLikwidBackend builds a LIKWID backend from its config block.
func NewLikwidBackend(cfg *config.LikwidConfig, reservation *CoreReservation) *LikwidBackend {
	return &LikwidBackend{cfg: cfg, reservation: reservation}
}

// Measure runs the binary `runs` times under likwid-perfctr and returns
// per-metric sample slices, one sample per run.
func (b *LikwidBackend) Measure(ctx context.Context, binaryPath string, args []string, env map[string]string, runs int, timeout time.Duration) (map[string][]float64, error) {
	release := b.reservation.Acquire(b.cfg.CoreList)
	defer release()

	samples := map[string][]float64{}
	for i := 0; i < runs; i++ {
		likwidArgs := []string{"-C", b.cfg.CoreList}
		if b.cfg.Group != "" {
			likwidArgs = append(likwidArgs, "-g", b.cfg.Group)
		} else {
			likwidArgs = append(likwidArgs, "-g", strings.Join(b.cfg.Events, ","))
		}
		likwidArgs = append(likwidArgs, binaryPath)
		likwidArgs = append(likwidArgs, args...)

		res, err := procexec.Run(ctx, "likwid-perfctr", likwidArgs, procexec.Opts{Env: envSlice(env), Timeout: timeout})
		if err != nil {
			return nil, &RunError{Code: classifyExecError(res), Err: err}
		}

		parsed, err := parseLikwidTable(res.Stdout)
		if err != nil {
			return nil, &RunError{Code: "metric_missing", Err: err}
		}
		for _, m := range b.cfg.Metrics {
			v, ok := parsed[strings.ToUpper(m.Name)]
			if !ok {
				v, ok = parsed[m.Name]
			}
			if !ok {
				return nil, &RunError{Code: "metric_missing", Err: fmt.Errorf("metric %q not found in likwid-perfctr output", m.Name)}
			}
			samples[m.Name] = append(samples[m.Name], v)
		}
	}
	return samples, nil
}

// parseLikwidTable extracts one scalar per named row from LIKWID's
// pipe-delimited table output. Each data row looks like:
//
//	|    Event    | Core 0 | Core 1 | ... |
//	|    Metric   |  1.23  |  4.56  | ... |
//
// and a combined-group run appends a trailing STAT block whose "Sum",
// "Avg", "Min", "Max" rows summarize across threads; when present, the
// Avg column is preferred over re-deriving it from per-thread cells,
// matching likwid_parse's STAT-row shortcut.
func parseLikwidTable(stdout string) (map[string]float64, error) {
	lines := strings.Split(stdout, "\n")
	result := map[string]float64{}
	statAvg := map[string]float64{}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitTableRow(line)
		if len(cells) < 2 {
			continue
		}
		name := cells[0]
		if name == "" || strings.EqualFold(name, "Event") || strings.EqualFold(name, "Metric") || strings.HasPrefix(name, "---") {
			continue
		}

		if isStatRow(name) {
			base, statCol := splitStatName(name)
			if statCol == "avg" {
				if v, ok := parseLikwidNumber(firstNumericCell(cells[1:])); ok {
					statAvg[strings.ToUpper(base)] = v
				}
			}
			continue
		}

		v, ok := parseLikwidNumber(firstNumericCell(cells[1:]))
		if ok {
			result[strings.ToUpper(name)] = v
		}
	}

	for k, v := range statAvg {
		result[k] = v
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no parseable rows in likwid-perfctr output")
	}
	return result, nil
}

func splitTableRow(line string) []string {
	raw := strings.Split(strings.Trim(line, "|"), "|")
	out := make([]string, len(raw))
	for i, c := range raw {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isStatRow(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{" sum", " avg", " min", " max"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func splitStatName(name string) (base, stat string) {
	lower := strings.ToLower(name)
	for _, s := range []string{"sum", "avg", "min", "max"} {
		if strings.HasSuffix(lower, " "+s) {
			return strings.TrimSpace(name[:len(name)-len(s)]), s
		}
	}
	return name, ""
}

func firstNumericCell(cells []string) string {
	for _, c := range cells {
		if c != "" {
			return c
		}
	}
	return ""
}

// decimalComma treats any surviving comma followed by one or two digits as
// a decimal point. This mirrors metrics.py's _SEP_RE/_DEC_COMMA tolerant
// parsing of LIKWID's locale-dependent number formatting (e.g. "1.234,56"
// or "1,234.56").
var decimalComma = regexp.MustCompile(`,(\d{1,2})$`)

// stripThousandsSep removes occurrences of sep that are immediately
// followed by exactly three digits and then a non-digit or end-of-string
// (Go's RE2 regexp engine has no lookahead support, so this is a manual
// equivalent of `sep(?=\d{3}(\D|$))`).
func stripThousandsSep(s string, sep byte) string {
	var b strings.Builder
	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]
		if c == sep && i+3 < n &&
			isASCIIDigit(s[i+1]) && isASCIIDigit(s[i+2]) && isASCIIDigit(s[i+3]) &&
			(i+4 == n || !isASCIIDigit(s[i+4])) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

func parseLikwidNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "nan" {
		return 0, false
	}
	s = stripThousandsSep(s, '.')
	s = stripThousandsSep(s, ',')
	s = decimalComma.ReplaceAllString(s, ".$1")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// envSlice layers runtime-plan overrides on top of SCOuT's own
// environment, since exec.Cmd.Env (when non-nil) replaces the child's
// entire environment rather than extending it.
func envSlice(env map[string]string) []string {
	out := append([]string{}, osEnviron()...)
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
