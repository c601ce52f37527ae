// Package region provides the sbrk-like collaborator the allocator grows
// into. It owns exactly one concern: reserve a block of address space once,
// then hand it out a monotonic "break" bump at a time. It never shrinks,
// never reorganizes what it hands out, and never interprets the bytes it
// returns — that's the allocator's job.
package region

import (
	"fmt"
	"unsafe"
)

// Extender is the region-extension primitive the allocator consumes. It
// mirrors spec §6's downstream interface: Extend grows the region
// monotonically and returns the address of the first new byte; Lo/Hi/Size
// report the region's current extent (the allocator takes Lo as the base
// its free-list links are offsets from, and its consistency checker
// compares block addresses against Lo and Hi).
type Extender interface {
	// Extend grows the region by n bytes and returns the address of the
	// first new byte. Returns an error if the region has no room left.
	Extend(n int) (unsafe.Pointer, error)

	// Lo returns the address of the first byte of the region.
	Lo() unsafe.Pointer
	// Hi returns the address one past the last byte currently committed.
	Hi() unsafe.Pointer
	// Size returns the number of bytes currently committed (Hi - Lo).
	Size() int
}

// ErrOutOfMemory is returned by Extend when the region has been asked to
// grow past the capacity it was created with. It is the "error sentinel"
// spec §6 calls for in place of a distinguished return value.
var ErrOutOfMemory = fmt.Errorf("region: out of memory")

// common holds the bookkeeping shared by every Extender implementation:
// a single reserved byte slab and a break cursor into it.
type common struct {
	base unsafe.Pointer
	cap  int
	brk  int
}

func (c *common) Lo() unsafe.Pointer { return c.base }
func (c *common) Hi() unsafe.Pointer { return unsafe.Add(c.base, c.brk) }
func (c *common) Size() int          { return c.brk }

func (c *common) extend(n int) (unsafe.Pointer, error) {
	if n < 0 {
		return nil, fmt.Errorf("region: negative extend size %d", n)
	}
	if c.brk+n > c.cap {
		return nil, ErrOutOfMemory
	}
	old := unsafe.Add(c.base, c.brk)
	c.brk += n
	return old, nil
}
