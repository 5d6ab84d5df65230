//go:build linux && (amd64 || arm64)

// Package timing measures one batch of operations and turns it into a
// single sample. Two interchangeable timers exist: a monotonic wall clock
// and a hardware reference-cycle counter.
package timing

import (
	"fmt"
	"time"
)

// Timer measures the cost of running batch once. Nothing but batch may run
// between the two readings.
type Timer interface {
	Measure(batch func()) (uint64, error)
	// Unit is the sample unit used in reports; empty for raw counter ticks.
	Unit() string
	Name() string
}

// Timer names accepted by New.
const (
	NameWall   = "wall"
	NameCycles = "cycles"
)

// New returns the timer registered under name.
func New(name string, cfg CounterConfig) (Timer, error) {
	switch name {
	case NameWall, "":
		return WallClock{}, nil
	case NameCycles:
		return NewCycleCounter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown timer %q (want %s or %s)",
			name, NameWall, NameCycles)
	}
}

// WallClock samples elapsed nanoseconds on the monotonic clock.
type WallClock struct{}

// Measure implements Timer.
func (WallClock) Measure(batch func()) (uint64, error) {
	start := time.Now()
	batch()
	elapsed := time.Since(start)

	return uint64(elapsed), nil
}

// Unit implements Timer.
func (WallClock) Unit() string { return "ns" }

// Name implements Timer.
func (WallClock) Name() string { return NameWall }
