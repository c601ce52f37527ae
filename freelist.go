package gomalloc

import (
	"unsafe"

	"github.com/cloudwego/gomalloc/internal/wordaccess"
)

// The free list is a circular doubly-linked list threaded through the
// first two payload words of every free block: prevLinkOff holds the
// predecessor's offset from the heap base, nextLinkOff the successor's.
// It is anchored at a.sentinel, a fixed allocated block living in the
// heap's prologue region — marked allocated so the placement scan never
// mistakes it for real free space, and never null so list operations need
// no nil checks at the boundaries.
const (
	prevLinkOff = 0
	nextLinkOff = int(wordSize)
)

func (a *Allocator) listPrev(bp unsafe.Pointer) unsafe.Pointer {
	off := int(wordaccess.ReadWord(bp, prevLinkOff))
	return wordaccess.At(a.base, off)
}

func (a *Allocator) listNext(bp unsafe.Pointer) unsafe.Pointer {
	off := int(wordaccess.ReadWord(bp, nextLinkOff))
	return wordaccess.At(a.base, off)
}

func (a *Allocator) setListPrev(bp, target unsafe.Pointer) {
	wordaccess.WriteWord(bp, prevLinkOff, uintptr(wordaccess.Offset(a.base, target)))
}

func (a *Allocator) setListNext(bp, target unsafe.Pointer) {
	wordaccess.WriteWord(bp, nextLinkOff, uintptr(wordaccess.Offset(a.base, target)))
}

// addFree inserts bp at the head of the free list — LIFO, so recently
// freed blocks are preferred on the next findFit, which tends to improve
// locality.
func (a *Allocator) addFree(bp unsafe.Pointer) {
	head := a.listNext(a.sentinel)
	a.setListPrev(head, bp)
	a.setListNext(bp, head)
	a.setListPrev(bp, a.sentinel)
	a.setListNext(a.sentinel, bp)
}

// removeFree splices bp out of the free list. It does not clear bp's own
// link words — they are about to be overwritten by payload data or by the
// placement engine.
func (a *Allocator) removeFree(bp unsafe.Pointer) {
	prev := a.listPrev(bp)
	next := a.listNext(bp)
	a.setListNext(prev, next)
	a.setListPrev(next, prev)
}

// findFit walks the free list forward from the sentinel and returns the
// first block whose size is at least asize, or nil if none fits. The walk
// starts at sentinel.next and terminates on returning to the sentinel —
// it never relies on the sentinel's allocated bit as a loop exit, and the
// allocated check inside the loop is purely a defensive guard against a
// corrupted list, not the termination condition.
func (a *Allocator) findFit(asize uintptr) unsafe.Pointer {
	for bp := a.listNext(a.sentinel); bp != a.sentinel; bp = a.listNext(bp) {
		if blockAllocated(bp) {
			// Should not happen if invariants hold; stop rather than
			// walk off into whatever this pointer actually is.
			return nil
		}
		if blockSize(bp) >= asize {
			return bp
		}
	}
	return nil
}
