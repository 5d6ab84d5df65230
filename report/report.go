// Package report formats benchmark results as report lines and comparison
// tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/weiihann/vmabench/bench"
)

// WriteLine writes the report line of one configuration:
//
//	vma=<N>, <op>(ns): mean:<f>, stdDev:<f>, stdErr:<f>, test_duration:<f>(s)
//
// The unit suffix is dropped for unitless counter samples.
func WriteLine(w io.Writer, r *bench.Result) error {
	op := r.Operation.String()
	if r.Unit != "" {
		op += "(" + r.Unit + ")"
	}

	_, err := fmt.Fprintf(w,
		"vma=%d, %s: mean:%.f, stdDev:%.f, stdErr:%.f, test_duration:%.2f(s)\n",
		r.VMACount, op,
		r.Summary.Mean, r.Summary.StdDev, r.Summary.StdErr,
		r.Duration.Seconds(),
	)

	return err
}

// Generate writes a markdown table per operation comparing every VMA count
// against the smallest one measured.
func Generate(w io.Writer, results []*bench.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")

	for _, group := range groupByOperation(results) {
		baseline := group[0]
		for _, r := range group[1:] {
			if r.VMACount < baseline.VMACount {
				baseline = r
			}
		}

		unit := group[0].Unit
		if unit == "" {
			unit = "ticks"
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "### %s (%s, timer: %s)\n", group[0].Operation,
			unit, group[0].Timer)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "| VMAs | Mean | StdDev | StdErr | Duration "+
			"| Failures | Slowdown |")
		fmt.Fprintln(w, "|------|------|--------|--------|----------"+
			"|----------|----------|")

		for _, r := range group {
			slowdown := 1.0
			if baseline.Summary.Mean > 0 {
				slowdown = r.Summary.Mean / baseline.Summary.Mean
			}

			fmt.Fprintf(w, "| %d | %.f | %.f | %.f | %s | %d | %.2fx |\n",
				r.VMACount,
				r.Summary.Mean,
				r.Summary.StdDev,
				r.Summary.StdErr,
				formatDuration(r.Duration),
				r.Failures,
				slowdown,
			)
		}
	}

	return nil
}

// groupByOperation splits results into runs of the same operation,
// keeping the order operations first appear in.
func groupByOperation(results []*bench.Result) [][]*bench.Result {
	index := make(map[bench.Operation]int)

	var groups [][]*bench.Result

	for _, r := range results {
		i, ok := index[r.Operation]
		if !ok {
			i = len(groups)
			index[r.Operation] = i
			groups = append(groups, nil)
		}

		groups[i] = append(groups[i], r)
	}

	return groups
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}
