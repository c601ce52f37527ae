//go:build unix

package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mem reserves a fixed amount of anonymous virtual address space up front
// via mmap and treats it the way the CS:APP memlib.c this allocator was
// distilled from treats its static MAX_HEAP array: Extend just bumps a
// break offset into memory that already exists. Anonymous pages are
// lazily committed by the kernel, so reserving more than will ever be used
// costs address space, not RAM.
//
// The mapping sits outside everything the Go runtime's garbage collector
// scans. That matters here specifically: block headers and free-list links
// are words the allocator writes by hand (see internal/wordaccess), and
// some of the time those words are raw encoded integers, not valid Go
// values — the GC must never be asked to trace or move them.
type Mem struct {
	common
}

// NewMem reserves maxSize bytes of address space and returns a region
// Extender backed by it. maxSize bounds how far the heap can ever grow.
func NewMem(maxSize int) (*Mem, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("region: maxSize must be positive, got %d", maxSize)
	}
	b, err := unix.Mmap(-1, 0, maxSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d bytes: %w", maxSize, err)
	}
	return &Mem{common: common{base: unsafe.Pointer(&b[0]), cap: maxSize}}, nil
}

// Extend grows the region by n bytes and returns the address of the first
// new byte.
func (m *Mem) Extend(n int) (unsafe.Pointer, error) {
	return m.common.extend(n)
}
