//go:build linux && (amd64 || arm64)

package bench_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/vmabench/bench"
	"github.com/weiihann/vmabench/report"
	"github.com/weiihann/vmabench/timing"
)

var lineRE = regexp.MustCompile(
	`^vma=(\d+), munmap\(ns\): mean:\d+, stdDev:\d+, stdErr:\d+, test_duration:\d+\.\d{2}\(s\)$`)

func TestRunSuiteEmitsOneLinePerCount(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []bench.Case{
		{Operation: bench.Munmap, VMACount: 1},
		{Operation: bench.Munmap, VMACount: 2},
		{Operation: bench.Munmap, VMACount: 4},
	}

	var out bytes.Buffer

	results, err := bench.RunSuite(context.Background(), logger, cases,
		bench.Config{Trials: 5, BatchSize: 8, Timer: timing.WallClock{}},
		func(r *bench.Result) error { return report.WriteLine(&out, r) },
	)
	require.NoError(t, err)
	require.Len(t, results, 3)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	for i, line := range lines {
		m := lineRE.FindStringSubmatch(line)
		require.NotNil(t, m, "line %q", line)
		assert.Equal(t, []string{"1", "2", "4"}[i], m[1])
	}
}

func TestRunSuiteStopsWhenCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := bench.RunSuite(ctx, logger,
		[]bench.Case{{Operation: bench.Munmap, VMACount: 1}},
		bench.Config{Trials: 1, BatchSize: 1}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
