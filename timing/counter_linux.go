//go:build linux && (amd64 || arm64)

package timing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/weiihann/vmabench/rawsys"
)

var (
	// ErrCounterBusy is returned when a session is opened while another
	// one is still open.
	ErrCounterBusy = errors.New("hardware counter session already open")
	// ErrSessionUsed is returned when a session is started twice or used
	// after Close.
	ErrSessionUsed = errors.New("hardware counter session already used")
)

// counterBusy guards the single process-wide session.
var counterBusy atomic.Bool

// CounterConfig selects which privilege levels the cycle counter sees.
type CounterConfig struct {
	// IncludeUser also counts user-mode cycles. By default only
	// kernel-mode cycles are counted (exclude_user=1).
	IncludeUser bool
}

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionRunning
	sessionStopped
	sessionClosed
)

// Session is one reference-cycle counter bound to one measurement window
// on the calling thread. The caller must keep the goroutine locked to its
// OS thread from OpenSession until Stop.
type Session struct {
	fd    int
	state sessionState
}

// OpenSession creates a disabled reference-cycle counter for the calling
// thread on any CPU. Only one session may be open at a time.
func OpenSession(cfg CounterConfig) (*Session, error) {
	if !counterBusy.CompareAndSwap(false, true) {
		return nil, ErrCounterBusy
	}

	fd, errno := rawsys.PerfEventOpen(counterAttr(cfg), 0, -1, -1,
		unix.PERF_FLAG_FD_CLOEXEC)
	if errno != 0 {
		counterBusy.Store(false)

		return nil, fmt.Errorf("perf_event_open(ref-cycles): %w", errno)
	}

	return &Session{fd: fd}, nil
}

func counterAttr(cfg CounterConfig) *unix.PerfEventAttr {
	attr := &unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Config: unix.PERF_COUNT_HW_REF_CPU_CYCLES,
	}
	attr.Size = uint32(unsafe.Sizeof(*attr))
	attr.Bits = unix.PerfBitDisabled

	if !cfg.IncludeUser {
		attr.Bits |= unix.PerfBitExcludeUser
	}

	return attr
}

// Start resets and enables the counter.
func (s *Session) Start() error {
	if s.state != sessionOpen {
		return ErrSessionUsed
	}

	if err := unix.IoctlSetInt(s.fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}

	if err := unix.IoctlSetInt(s.fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		return fmt.Errorf("enable counter: %w", err)
	}

	s.state = sessionRunning

	return nil
}

// Stop disables the counter and returns its value.
func (s *Session) Stop() (uint64, error) {
	if s.state != sessionRunning {
		return 0, ErrSessionUsed
	}

	s.state = sessionStopped

	if err := unix.IoctlSetInt(s.fd, unix.PERF_EVENT_IOC_DISABLE, 0); err != nil {
		return 0, fmt.Errorf("disable counter: %w", err)
	}

	var buf [8]byte

	n, err := unix.Read(s.fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}

	if n != len(buf) {
		return 0, fmt.Errorf("read counter: short read of %d bytes", n)
	}

	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close releases the counter. It is safe to call more than once.
func (s *Session) Close() error {
	if s.state == sessionClosed {
		return nil
	}

	s.state = sessionClosed
	err := unix.Close(s.fd)
	counterBusy.Store(false)

	return err
}

// CycleCounter samples reference CPU cycles with a fresh Session per
// measurement.
type CycleCounter struct {
	cfg CounterConfig
}

// NewCycleCounter returns a cycle-counting Timer.
func NewCycleCounter(cfg CounterConfig) *CycleCounter {
	return &CycleCounter{cfg: cfg}
}

// Measure implements Timer.
func (c *CycleCounter) Measure(batch func()) (uint64, error) {
	s, err := OpenSession(c.cfg)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		return 0, err
	}

	batch()

	return s.Stop()
}

// Unit implements Timer.
func (*CycleCounter) Unit() string { return "" }

// Name implements Timer.
func (*CycleCounter) Name() string { return NameCycles }

// CounterAvailable reports whether a cycle counter can be opened on this
// host, e.g. under the current perf_event_paranoid setting.
func CounterAvailable(cfg CounterConfig) error {
	s, err := OpenSession(cfg)
	if err != nil {
		return err
	}

	return s.Close()
}
