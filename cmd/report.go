package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HariAbram/scout/internal/archive"
)

// newReportCmd reads a completed archive and prints a best-per-objective
// summary: for every metric column, the feasible trial that minimized it
// and the one that maximized it, in the tabwriter style
// signalnine-thunderdome/internal/report/report.go uses for table output.
// It takes no study definition, so it reports both directions rather than
// assuming a min/max goal per metric.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <archive.csv>",
		Short: "Print a best-per-objective summary of a completed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, _, err := archive.ReadCompleted(args[0])
			if err != nil {
				return ExitError{Code: 3, Err: err}
			}

			var feasible []archive.TrialRecord
			for _, r := range records {
				if r.Feasible {
					feasible = append(feasible, r)
				}
			}
			if len(feasible) == 0 {
				fmt.Println("no feasible trials in archive")
				return nil
			}

			metrics := metricNames(feasible)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METRIC\tBEST MIN TRIAL\tMIN VALUE\tBEST MAX TRIAL\tMAX VALUE")
			fmt.Fprintln(tw, strings.Repeat("-", 64))
			for _, m := range metrics {
				minIdx, maxIdx, ok := bestTrials(feasible, m)
				if !ok {
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%g\t%d\t%g\n",
					m, feasible[minIdx].TrialIndex, feasible[minIdx].Metrics[m],
					feasible[maxIdx].TrialIndex, feasible[maxIdx].Metrics[m])
			}
			return tw.Flush()
		},
	}
}

// metricNames collects every metric column present in the archive, in
// sorted order for deterministic report output.
func metricNames(records []archive.TrialRecord) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for name := range r.Metrics {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bestTrials finds the feasible trial that minimized, and the one that
// maximized, the named metric.
func bestTrials(records []archive.TrialRecord, metric string) (minIdx, maxIdx int, ok bool) {
	minIdx, maxIdx = -1, -1
	for i, r := range records {
		v, present := r.Metrics[metric]
		if !present {
			continue
		}
		if minIdx == -1 || v < records[minIdx].Metrics[metric] {
			minIdx = i
		}
		if maxIdx == -1 || v > records[maxIdx].Metrics[metric] {
			maxIdx = i
		}
	}
	return minIdx, maxIdx, minIdx != -1
}
