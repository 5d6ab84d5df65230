//go:build linux && (amd64 || arm64)

package bench

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Operation is the memory-management call under test.
type Operation int

// Operations under test.
const (
	Munmap Operation = iota
	Mprotect
	Madvise
)

// Operations lists every operation in reporting order.
func Operations() []Operation {
	return []Operation{Munmap, Mprotect, Madvise}
}

func (o Operation) String() string {
	switch o {
	case Munmap:
		return "munmap"
	case Mprotect:
		return "mprotect"
	case Madvise:
		return "madvise"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// ParseOperation accepts an operation name, with or without the "m" prefix
// for unmap.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "munmap", "unmap":
		return Munmap, nil
	case "mprotect", "protect":
		return Mprotect, nil
	case "madvise", "advise":
		return Madvise, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}

// releasesSpace reports whether the operation itself frees the space, so
// no cleanup is needed after the timed window.
func (o Operation) releasesSpace() bool {
	return o == Munmap
}

// ErrorMode decides what happens to syscall results inside the window.
type ErrorMode int

const (
	// Unchecked discards every result. A failed call only contributes its
	// kernel-entry latency to the sample.
	Unchecked ErrorMode = iota
	// Checked stores each result in a preallocated slot and counts the
	// failures after the window closes. Nothing is retried.
	Checked
)

func (m ErrorMode) String() string {
	if m == Checked {
		return "checked"
	}

	return "unchecked"
}

// ParseErrorMode parses "unchecked" or "checked".
func ParseErrorMode(s string) (ErrorMode, error) {
	switch s {
	case "", "unchecked":
		return Unchecked, nil
	case "checked":
		return Checked, nil
	default:
		return 0, fmt.Errorf("unknown error mode %q", s)
	}
}

// Protection is the protection Mprotect applies. The zero value is
// read-only.
type Protection int

// Protections mprotect can apply.
const (
	ProtRead Protection = iota
	ProtReadWrite
	ProtNone
)

// Bits returns the PROT_* bits for p.
func (p Protection) Bits() int {
	switch p {
	case ProtReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	case ProtNone:
		return unix.PROT_NONE
	default:
		return unix.PROT_READ
	}
}

func (p Protection) String() string {
	switch p {
	case ProtRead:
		return "read"
	case ProtReadWrite:
		return "read-write"
	case ProtNone:
		return "none"
	default:
		return fmt.Sprintf("protection(%d)", int(p))
	}
}

// ParseProtect parses "read", "read-write" or "none".
func ParseProtect(s string) (Protection, error) {
	switch s {
	case "", "read":
		return ProtRead, nil
	case "read-write":
		return ProtReadWrite, nil
	case "none":
		return ProtNone, nil
	default:
		return 0, fmt.Errorf("unknown protection %q", s)
	}
}

// Advice is the hint Madvise gives. The zero value is MADV_DONTNEED.
type Advice int

// Advice values madvise can give.
const (
	AdviseDontNeed Advice = iota
	AdviseFree
	AdviseCold
	AdvisePageout
)

// Value returns the MADV_* constant for a.
func (a Advice) Value() int {
	switch a {
	case AdviseFree:
		return unix.MADV_FREE
	case AdviseCold:
		return unix.MADV_COLD
	case AdvisePageout:
		return unix.MADV_PAGEOUT
	default:
		return unix.MADV_DONTNEED
	}
}

func (a Advice) String() string {
	switch a {
	case AdviseDontNeed:
		return "dontneed"
	case AdviseFree:
		return "free"
	case AdviseCold:
		return "cold"
	case AdvisePageout:
		return "pageout"
	default:
		return fmt.Sprintf("advice(%d)", int(a))
	}
}

// ParseAdvice parses "dontneed", "free", "cold" or "pageout".
func ParseAdvice(s string) (Advice, error) {
	switch s {
	case "", "dontneed":
		return AdviseDontNeed, nil
	case "free":
		return AdviseFree, nil
	case "cold":
		return AdviseCold, nil
	case "pageout":
		return AdvisePageout, nil
	default:
		return 0, fmt.Errorf("unknown advice %q", s)
	}
}
