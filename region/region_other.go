//go:build !unix

package region

import (
	"fmt"
	"unsafe"
)

// Mem is the non-unix fallback: golang.org/x/sys/unix's mmap isn't
// available, so the region is backed by an ordinary Go slice instead of a
// raw OS mapping. Bookkeeping is otherwise identical to the unix
// implementation — see region_unix.go's doc comment for why Extend is a
// plain break bump rather than a real allocation per call.
type Mem struct {
	common
	buf []byte // keeps the backing array alive; common.base points into it
}

// NewMem reserves maxSize bytes and returns a region Extender backed by it.
func NewMem(maxSize int) (*Mem, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("region: maxSize must be positive, got %d", maxSize)
	}
	buf := make([]byte, maxSize)
	return &Mem{
		common: common{base: unsafe.Pointer(&buf[0]), cap: maxSize},
		buf:    buf,
	}, nil
}

// Extend grows the region by n bytes and returns the address of the first
// new byte.
func (m *Mem) Extend(n int) (unsafe.Pointer, error) {
	return m.common.extend(n)
}
