//go:build linux && (amd64 || arm64)

package bench

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/weiihann/vmabench/addrspace"
)

// scriptedTimer runs every batch and returns canned samples in order.
type scriptedTimer struct {
	samples []uint64
	calls   int
}

func (s *scriptedTimer) Measure(batch func()) (uint64, error) {
	batch()
	v := s.samples[s.calls%len(s.samples)]
	s.calls++

	return v, nil
}

func (*scriptedTimer) Unit() string { return "ns" }
func (*scriptedTimer) Name() string { return "scripted" }

type failingTimer struct{}

func (failingTimer) Measure(func()) (uint64, error) { return 0, unix.EACCES }
func (failingTimer) Unit() string                   { return "" }
func (failingTimer) Name() string                   { return "failing" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildSpaces(t *testing.T, n, vmas int) []addrspace.Space {
	t.Helper()

	spaces := make([]addrspace.Space, n)
	for i := range spaces {
		spaces[i] = addrspace.MustBuild(vmas)
	}

	return spaces
}

func TestRunConstantSamples(t *testing.T) {
	timer := &scriptedTimer{samples: []uint64{100}}

	result, err := Run(context.Background(), discardLogger(), Config{
		Operation: Munmap,
		VMACount:  1,
		Trials:    3,
		BatchSize: 4,
		Timer:     timer,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, timer.calls)
	assert.Equal(t, []uint64{100, 100, 100}, result.Samples)
	assert.Equal(t, 100.0, result.Summary.Mean)
	assert.Zero(t, result.Summary.StdDev)
	assert.Zero(t, result.Summary.StdErr)
	assert.Equal(t, "ns", result.Unit)
	assert.True(t, result.Duration > 0)
}

func TestRunKnownSamples(t *testing.T) {
	for _, op := range Operations() {
		timer := &scriptedTimer{samples: []uint64{10, 20, 30, 40}}

		result, err := Run(context.Background(), discardLogger(), Config{
			Operation: op,
			VMACount:  1,
			Trials:    4,
			BatchSize: 2,
			Timer:     timer,
			ErrorMode: Checked,
		})
		require.NoError(t, err, op.String())

		assert.InDelta(t, 25, result.Summary.Mean, 1e-9)
		assert.InDelta(t, math.Sqrt(125), result.Summary.StdDev, 1e-9)
		assert.InDelta(t, math.Sqrt(125)/2, result.Summary.StdErr, 1e-9)
		assert.Zero(t, result.Failures, op.String())
	}
}

func TestRunVerifyLayout(t *testing.T) {
	_, err := Run(context.Background(), discardLogger(), Config{
		Operation:    Madvise,
		VMACount:     8,
		Trials:       2,
		BatchSize:    3,
		Timer:        &scriptedTimer{samples: []uint64{1}},
		VerifyLayout: true,
	})
	assert.NoError(t, err)
}

func TestRunRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero vmas", Config{Operation: Munmap}},
		{"negative trials", Config{Operation: Munmap, VMACount: 1, Trials: -1}},
		{"negative batch", Config{Operation: Munmap, VMACount: 1, BatchSize: -1}},
		{"unknown operation", Config{Operation: Operation(9), VMACount: 1}},
	}

	for _, tt := range tests {
		_, err := Run(context.Background(), discardLogger(), tt.cfg)
		assert.Error(t, err, tt.name)
	}
}

func TestRunTimerFailurePanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Run(context.Background(), discardLogger(), Config{
			Operation: Munmap,
			VMACount:  1,
			Trials:    1,
			BatchSize: 1,
			Timer:     failingTimer{},
		})
	})
}

func countMappings(t *testing.T) int {
	t.Helper()

	self, err := procfs.Self()
	require.NoError(t, err)

	maps, err := self.ProcMaps()
	require.NoError(t, err)

	return len(maps)
}

func TestRunReleasesEverySpace(t *testing.T) {
	cfg := Config{
		VMACount:  4,
		Trials:    20,
		BatchSize: 50,
		Timer:     &scriptedTimer{samples: []uint64{1}},
	}

	for _, op := range Operations() {
		cfg.Operation = op

		// Settle the runtime's own mappings before counting.
		_, err := Run(context.Background(), discardLogger(), cfg)
		require.NoError(t, err, op.String())

		before := countMappings(t)

		_, err = Run(context.Background(), discardLogger(), cfg)
		require.NoError(t, err, op.String())

		assert.Equal(t, before, countMappings(t), op.String())
	}
}

func TestConfigZeroValueDefaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, unix.PROT_READ, cfg.Protect.Bits())
	assert.Equal(t, unix.MADV_DONTNEED, cfg.Advice.Value())
	assert.Equal(t, "read", cfg.Protect.String())
	assert.Equal(t, "dontneed", cfg.Advice.String())
}

func TestMunmapBatchReleasesSpaces(t *testing.T) {
	spaces := buildSpaces(t, 3, 4)

	Config{Operation: Munmap}.batch(spaces, nil)()

	for _, s := range spaces {
		regions, err := s.Layout()
		require.NoError(t, err)
		assert.Empty(t, regions)
	}
}

func TestMprotectBatchKeepsSpaces(t *testing.T) {
	spaces := buildSpaces(t, 2, 4)
	defer releaseAll(spaces)

	Config{Operation: Mprotect}.batch(spaces, nil)()

	for _, s := range spaces {
		regions, err := s.Layout()
		require.NoError(t, err)
		require.NotEmpty(t, regions)

		for _, r := range regions {
			assert.True(t, r.Read)
			assert.False(t, r.Write)
		}
	}
}

func TestCheckedBatchCountsFailures(t *testing.T) {
	spaces := buildSpaces(t, 4, 2)
	releaseAll(spaces)

	errnos := make([]unix.Errno, len(spaces))
	Config{Operation: Mprotect}.batch(spaces, errnos)()

	assert.Equal(t, 4, countFailures(errnos))
	assert.Zero(t, countFailures(errnos), "slots are cleared after counting")
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		input string
		want  Operation
	}{
		{"munmap", Munmap},
		{"unmap", Munmap},
		{"MPROTECT", Mprotect},
		{" madvise ", Madvise},
	}

	for _, tt := range tests {
		got, err := ParseOperation(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := ParseOperation("mremap")
	assert.Error(t, err)
}

func mustParse(t *testing.T, s string) Operation {
	t.Helper()

	op, err := ParseOperation(s)
	require.NoError(t, err)

	return op
}

func TestParseModes(t *testing.T) {
	mode, err := ParseErrorMode("checked")
	require.NoError(t, err)
	assert.Equal(t, Checked, mode)

	mode, err = ParseErrorMode("")
	require.NoError(t, err)
	assert.Equal(t, Unchecked, mode)

	_, err = ParseErrorMode("strict")
	assert.Error(t, err)

	prot, err := ParseProtect("read-write")
	require.NoError(t, err)
	assert.Equal(t, ProtReadWrite, prot)
	assert.Equal(t, unix.PROT_READ|unix.PROT_WRITE, prot.Bits())

	advice, err := ParseAdvice("")
	require.NoError(t, err)
	assert.Equal(t, AdviseDontNeed, advice)
	assert.Equal(t, unix.MADV_DONTNEED, advice.Value())

	_, err = ParseAdvice("willneed-ish")
	assert.Error(t, err)
}
