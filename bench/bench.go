//go:build linux && (amd64 || arm64)

// Package bench drives the trials of one benchmark configuration: build the
// address spaces, time the operation over all of them as one batch, clean
// up, and aggregate the samples once every trial has run.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	"github.com/weiihann/vmabench/addrspace"
	"github.com/weiihann/vmabench/rawsys"
	"github.com/weiihann/vmabench/stats"
	"github.com/weiihann/vmabench/timing"
)

// Default trial and batch sizes.
const (
	DefaultTrials    = 1000
	DefaultBatchSize = 1000
)

// DefaultVMACounts are the VMA counts run when none are configured.
var DefaultVMACounts = []int{1, 2, 4, 8, 16, 32}

// Config describes one configuration: one operation at one VMA count.
type Config struct {
	Operation Operation
	VMACount  int
	// Trials is the number of samples collected.
	Trials int
	// BatchSize is the number of spaces held and operated on per trial.
	BatchSize int
	Timer     timing.Timer
	ErrorMode ErrorMode
	// Protect is the protection Mprotect applies, read-only by default.
	Protect Protection
	// Advice is the hint Madvise gives, MADV_DONTNEED by default.
	Advice Advice
	// VerifyLayout checks the VMA layout of the first built space before
	// any trial is timed.
	VerifyLayout bool
}

func (cfg Config) withDefaults() Config {
	if cfg.Trials == 0 {
		cfg.Trials = DefaultTrials
	}

	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.Timer == nil {
		cfg.Timer = timing.WallClock{}
	}

	return cfg
}

func (cfg Config) validate() error {
	if cfg.Operation < Munmap || cfg.Operation > Madvise {
		return fmt.Errorf("unsupported operation %v", cfg.Operation)
	}

	if cfg.VMACount < 1 {
		return fmt.Errorf("vma count %d: must be at least 1", cfg.VMACount)
	}

	if cfg.Trials < 1 {
		return fmt.Errorf("trials %d: must be at least 1", cfg.Trials)
	}

	if cfg.BatchSize < 1 {
		return fmt.Errorf("batch size %d: must be at least 1", cfg.BatchSize)
	}

	return nil
}

// Result is the outcome of one configuration.
type Result struct {
	Operation Operation
	VMACount  int
	Timer     string
	// Unit of the samples; empty for raw counter ticks.
	Unit    string
	Samples []uint64
	Summary stats.Summary
	// Duration is the wall-clock time of the whole configuration,
	// whichever timer produced the samples.
	Duration time.Duration
	// Failures counts failed calls inside timed windows. Always zero in
	// Unchecked mode.
	Failures int
}

// Run executes every trial of cfg and aggregates the samples.
//
// Address-space construction is never timed. For Munmap the release is the
// timed operation; for the other operations the spaces are released after
// the window closes. A timer failure is fatal and panics without releasing
// the spaces already built.
func Run(ctx context.Context, logger *slog.Logger, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger = logger.With(
		slog.String("op", cfg.Operation.String()),
		slog.Int("vma", cfg.VMACount),
	)

	// Counter sessions count the calling thread only, and a collection
	// inside a window would show up in the wall-clock samples.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	spaces := make([]addrspace.Space, cfg.BatchSize)

	var errnos []unix.Errno
	if cfg.ErrorMode == Checked {
		errnos = make([]unix.Errno, cfg.BatchSize)
	}

	batch := cfg.batch(spaces, errnos)
	samples := make([]uint64, 0, cfg.Trials)
	failures := 0

	logger.DebugContext(ctx, "configuration started",
		slog.Int("trials", cfg.Trials),
		slog.Int("batch", cfg.BatchSize),
		slog.String("timer", cfg.Timer.Name()),
		slog.String("errors", cfg.ErrorMode.String()),
		slog.String("protect", cfg.Protect.String()),
		slog.String("advice", cfg.Advice.String()),
	)

	start := time.Now()

	for trial := 0; trial < cfg.Trials; trial++ {
		for i := range spaces {
			spaces[i] = addrspace.MustBuild(cfg.VMACount)
		}

		if cfg.VerifyLayout && trial == 0 {
			if err := spaces[0].Verify(); err != nil {
				releaseAll(spaces)

				return nil, fmt.Errorf("verify layout: %w", err)
			}
		}

		sample, err := cfg.Timer.Measure(batch)
		if err != nil {
			panic(fmt.Sprintf("bench: %s vma=%d trial %d: %v",
				cfg.Operation, cfg.VMACount, trial, err))
		}

		samples = append(samples, sample)

		if !cfg.Operation.releasesSpace() {
			releaseAll(spaces)
		}

		if errnos != nil {
			failures += countFailures(errnos)
		}
	}

	duration := time.Since(start)

	if failures > 0 {
		logger.WarnContext(ctx, "calls failed inside timed windows",
			slog.Int("failures", failures),
		)
	}

	summary := stats.Summarize(samples)

	logger.DebugContext(ctx, "configuration finished",
		slog.Float64("mean", summary.Mean),
		slog.Duration("duration", duration),
	)

	return &Result{
		Operation: cfg.Operation,
		VMACount:  cfg.VMACount,
		Timer:     cfg.Timer.Name(),
		Unit:      cfg.Timer.Unit(),
		Samples:   samples,
		Summary:   summary,
		Duration:  duration,
		Failures:  failures,
	}, nil
}

// batch returns the function timed for every trial. Each variant is a plain
// loop of direct syscalls so the window holds nothing but kernel entries.
func (cfg Config) batch(spaces []addrspace.Space, errnos []unix.Errno) func() {
	prot, advice := cfg.Protect.Bits(), cfg.Advice.Value()

	switch {
	case cfg.Operation == Munmap && errnos == nil:
		return func() {
			for i := range spaces {
				_ = rawsys.Munmap(spaces[i].Base, spaces[i].Len)
			}
		}
	case cfg.Operation == Munmap:
		return func() {
			for i := range spaces {
				errnos[i] = rawsys.Munmap(spaces[i].Base, spaces[i].Len)
			}
		}
	case cfg.Operation == Mprotect && errnos == nil:
		return func() {
			for i := range spaces {
				_ = rawsys.Mprotect(spaces[i].Base, spaces[i].Len, prot)
			}
		}
	case cfg.Operation == Mprotect:
		return func() {
			for i := range spaces {
				errnos[i] = rawsys.Mprotect(spaces[i].Base, spaces[i].Len, prot)
			}
		}
	case cfg.Operation == Madvise && errnos == nil:
		return func() {
			for i := range spaces {
				_ = rawsys.Madvise(spaces[i].Base, spaces[i].Len, advice)
			}
		}
	case cfg.Operation == Madvise:
		return func() {
			for i := range spaces {
				errnos[i] = rawsys.Madvise(spaces[i].Base, spaces[i].Len, advice)
			}
		}
	default:
		panic(fmt.Sprintf("bench: unsupported operation %v", cfg.Operation))
	}
}

func releaseAll(spaces []addrspace.Space) {
	for i := range spaces {
		_ = spaces[i].Release()
	}
}

func countFailures(errnos []unix.Errno) int {
	n := 0

	for i, errno := range errnos {
		if errno != 0 {
			n++
		}

		errnos[i] = 0
	}

	return n
}
