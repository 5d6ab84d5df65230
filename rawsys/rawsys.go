//go:build linux && (amd64 || arm64)

// Package rawsys issues memory-management system calls directly, without
// the retry and slice bookkeeping of the unix package wrappers. Every call
// returns the kernel's raw result; nothing is inspected or logged, so the
// cost of a call is the cost of the kernel entry and nothing else.
package rawsys

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap maps length bytes at (or near) addr. On failure the returned address
// is the kernel's error value and errno is non-zero.
func Mmap(addr, length uintptr, prot, flags, fd int, offset int64) (uintptr, unix.Errno) {
	r, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		length,
		uintptr(prot),
		uintptr(flags),
		uintptr(fd),
		uintptr(offset),
	)
	return r, errno
}

// Munmap removes the mappings in [addr, addr+length).
func Munmap(addr, length uintptr) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	return errno
}

// Mprotect changes the protection of [addr, addr+length).
func Mprotect(addr, length uintptr, prot int) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_MPROTECT, addr, length, uintptr(prot))
	return errno
}

// PkeyMprotect is Mprotect with a protection key attached to the range.
func PkeyMprotect(addr, length uintptr, prot, pkey int) unix.Errno {
	_, _, errno := unix.Syscall6(
		unix.SYS_PKEY_MPROTECT,
		addr,
		length,
		uintptr(prot),
		uintptr(pkey),
		0,
		0,
	)
	return errno
}

// Madvise gives the kernel an advice hint about [addr, addr+length).
func Madvise(addr, length uintptr, advice int) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_MADVISE, addr, length, uintptr(advice))
	return errno
}

// Mlock locks [addr, addr+length) into RAM.
func Mlock(addr, length uintptr) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_MLOCK, addr, length, 0)
	return errno
}

// Munlock undoes Mlock.
func Munlock(addr, length uintptr) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_MUNLOCK, addr, length, 0)
	return errno
}

// PerfEventOpen opens a performance counter described by attr and returns
// its file descriptor.
func PerfEventOpen(attr *unix.PerfEventAttr, pid, cpu, groupFd, flags int) (int, unix.Errno) {
	r, _, errno := unix.Syscall6(
		unix.SYS_PERF_EVENT_OPEN,
		uintptr(unsafe.Pointer(attr)),
		uintptr(pid),
		uintptr(cpu),
		uintptr(groupFd),
		uintptr(flags),
		0,
	)
	return int(r), errno
}
