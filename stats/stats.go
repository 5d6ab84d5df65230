// Package stats summarizes benchmark samples.
package stats

import "math"

// Sample is any numeric measurement a summary can be computed over.
type Sample interface {
	~uint64 | ~int64 | ~float64
}

// Summary is derived from one sample set and is recomputed, never updated.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	StdErr float64
}

// Summarize computes the mean, the population standard deviation (squared
// deviations divided by N) and the standard error of samples. It panics on
// an empty sample set.
func Summarize[T Sample](samples []T) Summary {
	n := len(samples)
	if n == 0 {
		panic("stats: empty sample set")
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}

	mean := sum / float64(n)

	var variance float64
	for _, s := range samples {
		d := float64(s) - mean
		variance += d * d
	}

	variance /= float64(n)
	stddev := math.Sqrt(variance)

	return Summary{
		N:      n,
		Mean:   mean,
		StdDev: stddev,
		StdErr: stddev / math.Sqrt(float64(n)),
	}
}
