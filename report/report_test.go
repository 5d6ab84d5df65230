package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/weiihann/vmabench/bench"
	"github.com/weiihann/vmabench/stats"
)

func TestWriteLineNanoseconds(t *testing.T) {
	r := &bench.Result{
		Operation: bench.Munmap,
		VMACount:  1,
		Unit:      "ns",
		Summary:   stats.Summarize([]uint64{10, 20, 30, 40}),
		Duration:  1234 * time.Millisecond,
	}

	var buf bytes.Buffer
	if err := WriteLine(&buf, r); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	want := "vma=1, munmap(ns): mean:25, stdDev:11, stdErr:6, test_duration:1.23(s)\n"
	if buf.String() != want {
		t.Errorf("line = %q, want %q", buf.String(), want)
	}
}

func TestWriteLineUnitless(t *testing.T) {
	r := &bench.Result{
		Operation: bench.Madvise,
		VMACount:  32,
		Summary:   stats.Summarize([]uint64{100, 100, 100}),
		Duration:  2 * time.Second,
	}

	var buf bytes.Buffer
	if err := WriteLine(&buf, r); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	want := "vma=32, madvise: mean:100, stdDev:0, stdErr:0, test_duration:2.00(s)\n"
	if buf.String() != want {
		t.Errorf("line = %q, want %q", buf.String(), want)
	}
}

func TestGenerate(t *testing.T) {
	results := []*bench.Result{
		{
			Operation: bench.Mprotect, VMACount: 1, Unit: "ns", Timer: "wall",
			Summary: stats.Summary{Mean: 1000}, Duration: 500 * time.Millisecond,
		},
		{
			Operation: bench.Mprotect, VMACount: 4, Unit: "ns", Timer: "wall",
			Summary: stats.Summary{Mean: 3000}, Duration: 1500 * time.Millisecond,
		},
		{
			Operation: bench.Madvise, VMACount: 1, Timer: "cycles",
			Summary: stats.Summary{Mean: 10}, Failures: 2,
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		"### mprotect (ns, timer: wall)",
		"### madvise (ticks, timer: cycles)",
		"| 4 | 3000 | 0 | 0 | 1.50s | 0 | 3.00x |",
		"| 1 | 10 | 0 | 0 | 0ms | 2 | 1.00x |",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}

	if strings.Index(output, "mprotect") > strings.Index(output, "madvise") {
		t.Error("expected operations in first-seen order")
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, nil); err == nil {
		t.Error("expected error for empty results")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "0ms"},
		{500 * time.Millisecond, "500ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.00s"},
		{1500 * time.Millisecond, "1.50s"},
		{time.Minute, "60.00s"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.input)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
