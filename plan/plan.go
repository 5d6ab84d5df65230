//go:build linux && (amd64 || arm64)

// Package plan expands a benchmark configuration into the ordered list of
// cases the trial driver runs: every operation crossed with every VMA
// count.
package plan

import (
	"fmt"
	"math/bits"

	"github.com/weiihann/vmabench/bench"
)

// Config controls plan generation.
type Config struct {
	// Operations by name; empty means all of them.
	Operations []string
	// VMACounts lists explicit counts. When empty, powers of two up to
	// MaxVMAs are used, or the reference list when MaxVMAs is zero too.
	VMACounts []int
	MaxVMAs   int
	Trials    int
	BatchSize int
}

// Case is one planned configuration.
type Case struct {
	bench.Case
	// PowerOfTwo is false for counts outside the reference series.
	PowerOfTwo bool
}

// Plan is the expanded, validated configuration.
type Plan struct {
	Cases     []Case
	Trials    int
	BatchSize int
}

// Summary contains statistics about the generated plan.
type Summary struct {
	Operations int
	VMACounts  int
	// TotalTrials is the number of samples the whole plan collects.
	TotalTrials int
	// TotalMappings is the number of address spaces built over the plan.
	TotalMappings int
}

// Generate validates cfg and expands it into a Plan.
func Generate(cfg Config) (*Plan, error) {
	ops, err := operations(cfg.Operations)
	if err != nil {
		return nil, err
	}

	counts, err := vmaCounts(cfg.VMACounts, cfg.MaxVMAs)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Trials:    cfg.Trials,
		BatchSize: cfg.BatchSize,
	}

	if p.Trials == 0 {
		p.Trials = bench.DefaultTrials
	}

	if p.BatchSize == 0 {
		p.BatchSize = bench.DefaultBatchSize
	}

	if p.Trials < 1 || p.BatchSize < 1 {
		return nil, fmt.Errorf("trials %d and batch size %d must be positive",
			p.Trials, p.BatchSize)
	}

	for _, op := range ops {
		for _, n := range counts {
			p.Cases = append(p.Cases, Case{
				Case:       bench.Case{Operation: op, VMACount: n},
				PowerOfTwo: bits.OnesCount(uint(n)) == 1,
			})
		}
	}

	return p, nil
}

// BenchCases returns the cases in the form the trial driver takes.
func (p *Plan) BenchCases() []bench.Case {
	cases := make([]bench.Case, len(p.Cases))
	for i, c := range p.Cases {
		cases[i] = c.Case
	}

	return cases
}

// Summarize returns the size of the plan.
func (p *Plan) Summarize() Summary {
	ops := make(map[bench.Operation]struct{})
	counts := make(map[int]struct{})

	var s Summary

	for _, c := range p.Cases {
		ops[c.Operation] = struct{}{}
		counts[c.VMACount] = struct{}{}
		s.TotalTrials += p.Trials
		s.TotalMappings += p.Trials * p.BatchSize
	}

	s.Operations = len(ops)
	s.VMACounts = len(counts)

	return s
}

func operations(names []string) ([]bench.Operation, error) {
	if len(names) == 0 {
		return bench.Operations(), nil
	}

	seen := make(map[bench.Operation]bool, len(names))
	ops := make([]bench.Operation, 0, len(names))

	for _, name := range names {
		op, err := bench.ParseOperation(name)
		if err != nil {
			return nil, err
		}

		if seen[op] {
			continue
		}

		seen[op] = true
		ops = append(ops, op)
	}

	return ops, nil
}

func vmaCounts(explicit []int, maxVMAs int) ([]int, error) {
	if len(explicit) > 0 {
		for _, n := range explicit {
			if n < 1 {
				return nil, fmt.Errorf("vma count %d: must be at least 1", n)
			}
		}

		return explicit, nil
	}

	if maxVMAs == 0 {
		return append([]int(nil), bench.DefaultVMACounts...), nil
	}

	if maxVMAs < 1 {
		return nil, fmt.Errorf("max vmas %d: must be at least 1", maxVMAs)
	}

	var counts []int
	for n := 1; n <= maxVMAs; n *= 2 {
		counts = append(counts, n)
	}

	return counts, nil
}
