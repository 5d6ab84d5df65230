//go:build linux && (amd64 || arm64)

// Package addrspace builds synthetic address spaces with a controlled number
// of VMAs. A space is one anonymous mapping whose even-indexed pages are
// made inaccessible, so the kernel cannot merge neighbouring pages and has
// to keep one VMA record per page.
package addrspace

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/weiihann/vmabench/rawsys"
)

// PageSize is the granularity every space is built with.
var PageSize = uintptr(os.Getpagesize())

// Space is an address range owned by whoever built it. It must be released
// exactly once; copies of a Space alias the same mapping.
type Space struct {
	Base uintptr
	Len  uintptr
	VMAs int
}

// Build reserves numVMA pages as a single private anonymous mapping and
// splits it into numVMA VMAs by alternating page protection.
func Build(numVMA int) (Space, error) {
	if numVMA < 1 {
		return Space{}, fmt.Errorf("vma count %d: must be at least 1", numVMA)
	}

	length := uintptr(numVMA) * PageSize

	base, errno := rawsys.Mmap(0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE, -1, 0)
	if errno != 0 {
		return Space{}, fmt.Errorf("reserve %d bytes: %w", length, errno)
	}

	// The split itself is not checked; a failure shows up as fewer VMAs,
	// which Layout can detect.
	for i := 0; i < numVMA; i += 2 {
		_ = rawsys.Mprotect(base+uintptr(i)*PageSize, PageSize, unix.PROT_NONE)
	}

	return Space{Base: base, Len: length, VMAs: numVMA}, nil
}

// MustBuild is Build for callers that cannot run without the space. A
// rejected reservation means the host cannot run the benchmark at all.
func MustBuild(numVMA int) Space {
	s, err := Build(numVMA)
	if err != nil {
		panic(fmt.Sprintf("addrspace: %v", err))
	}

	return s
}

// End returns the first address past the space.
func (s Space) End() uintptr {
	return s.Base + s.Len
}

// Pages returns the number of pages in the space.
func (s Space) Pages() int {
	return int(s.Len / PageSize)
}

// PageAddr returns the address of page i.
func (s Space) PageAddr(i int) uintptr {
	return s.Base + uintptr(i)*PageSize
}

// Release unmaps the whole space. The result is returned unchecked.
func (s Space) Release() unix.Errno {
	return rawsys.Munmap(s.Base, s.Len)
}
