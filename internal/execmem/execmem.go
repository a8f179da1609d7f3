// Package execmem owns the single page-aligned region a compiled
// function's machine code is written into and eventually executed
// from (spec §4.12). Ownership is move-only and the region is always
// in exactly one of three states: writable, executable, or released;
// the two permission sets are mutually exclusive (W^X), matching
// `launix-de-memcp`'s mmap-based JIT allocator (`other_examples`) and
// the corpus-wide idiom of reaching for `golang.org/x/sys/unix` for
// raw mmap/mprotect rather than the lower-level `syscall` package.
package execmem

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type state int

const (
	stateWritable state = iota
	stateExecutable
	stateReleased
)

// Region is a single mmap'd, page-aligned block of memory. The zero
// value is not valid; construct one with Allocate.
type Region struct {
	data  []byte
	state state
}

// Allocate rounds size up to the system page size and maps a
// read+write, anonymous, private region.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, errors.New("execmem: allocation size must be positive")
	}
	pageSize := unix.Getpagesize()
	rounded := (size + pageSize - 1) &^ (pageSize - 1)
	data, err := unix.Mmap(-1, 0, rounded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "execmem: mmap failed")
	}
	return &Region{data: data, state: stateWritable}, nil
}

// Bytes returns the region's backing slice for writing generated
// instructions into. It is only valid while the region is writable.
func (r *Region) Bytes() ([]byte, error) {
	if err := r.requireState(stateWritable, "write"); err != nil {
		return nil, err
	}
	return r.data, nil
}

// MakeExecutable removes write permission and adds execute,
// transitioning the region from writable to executable.
func (r *Region) MakeExecutable() error {
	if err := r.requireState(stateWritable, "make executable"); err != nil {
		return err
	}
	if err := unix.Mprotect(r.data, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return errors.Wrap(err, "execmem: mprotect RX failed")
	}
	r.state = stateExecutable
	return nil
}

// MakeWritable inverts MakeExecutable, restoring write access so the
// region can be patched again before re-protecting it.
func (r *Region) MakeWritable() error {
	if err := r.requireState(stateExecutable, "make writable"); err != nil {
		return err
	}
	if err := unix.Mprotect(r.data, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return errors.Wrap(err, "execmem: mprotect RW failed")
	}
	r.state = stateWritable
	return nil
}

// EntryPoint returns the address of the region's first byte, valid
// only once the region is executable.
func (r *Region) EntryPoint() (uintptr, error) {
	if err := r.requireState(stateExecutable, "take the entry point of"); err != nil {
		return 0, err
	}
	return uintptr(unsafe.Pointer(&r.data[0])), nil
}

// Release unmaps the region. Further operations on it are errors.
// Calling Release twice is itself an error (double-deallocation).
func (r *Region) Release() error {
	if r.state == stateReleased {
		return errors.New("execmem: region already released")
	}
	if err := unix.Munmap(r.data); err != nil {
		return errors.Wrap(err, "execmem: munmap failed")
	}
	r.data = nil
	r.state = stateReleased
	return nil
}

func (r *Region) requireState(want state, verb string) error {
	switch r.state {
	case stateReleased:
		return errors.Errorf("execmem: cannot %s a released region", verb)
	case want:
		return nil
	default:
		return errors.Errorf("execmem: cannot %s a region that is not in the required permission state", verb)
	}
}
