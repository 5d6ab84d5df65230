//go:build linux && (amd64 || arm64)

package addrspace

import (
	"runtime/debug"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sink byte

func faults(addr uintptr, write bool) (faulted bool) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	defer func() {
		if recover() != nil {
			faulted = true
		}
	}()

	p := (*byte)(unsafe.Pointer(addr))
	if write {
		*p = 0x5a
	} else {
		sink = *p
	}

	return false
}

func TestBuildLayout(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 16, 32} {
		s, err := Build(n)
		require.NoError(t, err)

		assert.Equal(t, uintptr(n)*PageSize, s.Len)
		assert.Equal(t, n, s.Pages())
		require.NoError(t, s.Verify(), "vma=%d", n)

		require.Zero(t, s.Release())
	}
}

func TestBuildPageAccess(t *testing.T) {
	s := MustBuild(6)
	defer s.Release()

	for i := 0; i < s.Pages(); i++ {
		blocked := i%2 == 0
		assert.Equal(t, blocked, faults(s.PageAddr(i), false), "read page %d", i)
		assert.Equal(t, blocked, faults(s.PageAddr(i), true), "write page %d", i)
	}
}

func TestReleaseUnmapsRange(t *testing.T) {
	s := MustBuild(8)

	regions, err := s.Layout()
	require.NoError(t, err)
	require.Len(t, regions, 8)

	require.Zero(t, s.Release())

	regions, err = s.Layout()
	require.NoError(t, err)
	assert.Empty(t, regions)

	// Nothing of the old space lingers to merge with the next one.
	again := MustBuild(8)
	defer again.Release()
	assert.NoError(t, again.Verify())
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(0)
	assert.Error(t, err)

	assert.Panics(t, func() { MustBuild(-1) })
}
