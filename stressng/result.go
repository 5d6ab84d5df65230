// Package stressng runs the stress-ng pagemove stressor and summarizes its
// page-remap throughput across repeated runs.
package stressng

import (
	"fmt"
	"io"

	"github.com/weiihann/vmabench/stats"
)

// Result holds the parsed throughput of every run and its summary.
type Result struct {
	OpsPerSec []float64
	Summary   stats.Summary
}

// WriteSummary writes the statistics block of r.
func WriteSummary(w io.Writer, r *Result) error {
	s := r.Summary

	pct := func(v float64) float64 {
		if s.Mean == 0 {
			return 0
		}

		return v / s.Mean * 100
	}

	_, err := fmt.Fprintf(w,
		"\nStatistics:\nOps/sec:\n"+
			"  Mean     : %.2f\n"+
			"  Std Dev  : %.2f (%.2f%% of Mean)\n"+
			"  Std Err  : %.2f (%.2f%% of Mean)\n",
		s.Mean,
		s.StdDev, pct(s.StdDev),
		s.StdErr, pct(s.StdErr),
	)

	return err
}
