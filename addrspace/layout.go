//go:build linux && (amd64 || arm64)

package addrspace

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Region is the part of one VMA record that falls inside a queried range.
type Region struct {
	Start uintptr
	End   uintptr
	Read  bool
	Write bool
}

// Layout returns the VMA records of the current process that intersect
// the space, clipped to it, in address order.
func (s Space) Layout() ([]Region, error) {
	return Regions(s.Base, s.End())
}

// Regions returns the VMA records that intersect [start, end).
func Regions(start, end uintptr) ([]Region, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("open /proc/self: %w", err)
	}

	maps, err := proc.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	var regions []Region

	for _, m := range maps {
		if m.EndAddr <= start || m.StartAddr >= end {
			continue
		}

		r := Region{
			Start: max(m.StartAddr, start),
			End:   min(m.EndAddr, end),
		}
		if m.Perms != nil {
			r.Read = m.Perms.Read
			r.Write = m.Perms.Write
		}

		regions = append(regions, r)
	}

	return regions, nil
}

// Verify checks that the space is split into exactly one VMA per page,
// with every even-indexed page inaccessible and every odd-indexed page
// readable and writable.
func (s Space) Verify() error {
	regions, err := s.Layout()
	if err != nil {
		return err
	}

	if len(regions) != s.VMAs {
		return fmt.Errorf("space %#x: got %d vmas, want %d",
			s.Base, len(regions), s.VMAs)
	}

	for i, r := range regions {
		if r.Start != s.PageAddr(i) || r.End != s.PageAddr(i+1) {
			return fmt.Errorf("space %#x: vma %d spans %#x-%#x, want one page",
				s.Base, i, r.Start, r.End)
		}

		open := i%2 == 1
		if r.Read != open || r.Write != open {
			return fmt.Errorf("space %#x: page %d read=%t write=%t, want %t",
				s.Base, i, r.Read, r.Write, open)
		}
	}

	return nil
}
