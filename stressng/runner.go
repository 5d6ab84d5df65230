package stressng

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/weiihann/vmabench/stats"
)

// RunConfig holds parameters for a series of stress-ng runs.
type RunConfig struct {
	// Runs is the number of times stress-ng is started.
	Runs int
	// Timeout is passed to stress-ng as --timeout, in whole seconds.
	// Fractions round up; stress-ng reads 0 as no limit.
	Timeout time.Duration
	// Instances is the number of pagemove stressors.
	Instances int
}

// DefaultRunConfig matches the reference invocation.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Runs:      1,
		Timeout:   60 * time.Second,
		Instances: 64,
	}
}

// killGrace is how long a run may outlive its timeout before it is killed.
const killGrace = 30 * time.Second

// Runner launches stress-ng and collects its pagemove metric.
type Runner struct {
	BinaryPath string
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the stress-ng binary at binaryPath.
func NewRunner(binaryPath string, logger *slog.Logger) *Runner {
	return &Runner{
		BinaryPath: binaryPath,
		Logger:     logger.With(slog.String("stressor", "pagemove")),
	}
}

// Args returns the stress-ng command line for cfg.
func (cfg RunConfig) Args() []string {
	return []string{
		"--times", "--verify", "--metrics", "--no-rand-seed",
		"--timeout", strconv.FormatInt(timeoutSeconds(cfg.Timeout), 10),
		"--pagemove", strconv.Itoa(cfg.Instances),
	}
}

func timeoutSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

// Run starts stress-ng cfg.Runs times, one after another, and summarizes
// the page remaps per second reported by each run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("runs %d: must be at least 1", cfg.Runs)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout %v: must be positive", cfg.Timeout)
	}

	result := &Result{OpsPerSec: make([]float64, 0, cfg.Runs)}

	for i := 0; i < cfg.Runs; i++ {
		r.Logger.InfoContext(ctx, "running stress-ng",
			slog.Int("run", i+1),
			slog.Int("runs", cfg.Runs),
		)

		ops, err := r.runOnce(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}

		r.Logger.InfoContext(ctx, "stress-ng finished",
			slog.Int("run", i+1),
			slog.Float64("ops_per_sec", ops),
		)

		result.OpsPerSec = append(result.OpsPerSec, ops)
	}

	result.Summary = stats.Summarize(result.OpsPerSec)

	return result, nil
}

func (r *Runner) runOnce(ctx context.Context, cfg RunConfig) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx,
		time.Duration(timeoutSeconds(cfg.Timeout))*time.Second+killGrace)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.BinaryPath, cfg.Args()...)

	// stress-ng writes its metrics through its logger, which goes to
	// stderr on some builds and stdout on others.
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("stress-ng failed: %w\noutput: %s",
			err, out.String())
	}

	ops, err := parseOpsPerSec(&out)
	if err != nil {
		return 0, fmt.Errorf("parse stress-ng output: %w", err)
	}

	return ops, nil
}

// metricRE matches lines like
//
//	stress-ng: metrc: [4205] pagemove  40418.14 page remaps per sec (harmonic mean of 64 instances)
var metricRE = regexp.MustCompile(`pagemove\D*?([0-9]+(?:\.[0-9]+)?) page remaps per sec`)

func parseOpsPerSec(r io.Reader) (float64, error) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		m := metricRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		ops, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("bad metric %q: %w", m[1], err)
		}

		return ops, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, err
	}

	return 0, fmt.Errorf("no page remaps per sec metric found")
}
