// Package wordaccess is the one place in this module that reads and
// writes heap words through unsafe.Pointer. Every header, footer, and
// free-list link the allocator reads or writes goes through
// ReadWord/WriteWord; outside this package and the tests, the only other
// pointer conversions are the allocator's []byte payload views
// (payloadSlice and bpOf) and the checker's alignment and bounds checks.
//
// adapted from cloudwego/gopkg's internal/hack, which does the analogous
// thing for []byte/string header reinterpretation: confine unsafe.Pointer
// casts to a single tiny file so the rest of the package can pretend it's
// working with typed values.
package wordaccess

import "unsafe"

// ReadWord reads one machine word at byte offset off from base. off may be
// negative, to read a word before base (e.g. a block's header from its
// payload pointer).
func ReadWord(base unsafe.Pointer, off int) uintptr {
	return *(*uintptr)(unsafe.Add(base, off))
}

// WriteWord writes one machine word at byte offset off from base.
func WriteWord(base unsafe.Pointer, off int, val uintptr) {
	*(*uintptr)(unsafe.Add(base, off)) = val
}

// At returns the address off bytes past base, as a pointer.
func At(base unsafe.Pointer, off int) unsafe.Pointer {
	return unsafe.Add(base, off)
}

// Offset returns p's distance from base, in bytes.
func Offset(base, p unsafe.Pointer) int {
	return int(uintptr(p) - uintptr(base))
}

// Note: free-list prev/next links and block boundary tags are deliberately
// stored as plain words (byte offsets from the arena base), never as
// unsafe.Pointer values written into the arena itself. The arena may be
// OS-backed memory the Go runtime doesn't know about (see region.Mem); even
// when it isn't, nothing here wants the GC treating a block header as a
// pointer it might trace or move.
