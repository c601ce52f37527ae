package gomalloc

import (
	"unsafe"

	"github.com/cloudwego/gomalloc/internal/wordaccess"
)

// CheckHeap walks the entire heap and free list looking for consistency
// violations, logging each one it finds to a's logger. It returns the
// number of violations found; 0 means the heap is internally consistent.
// This mirrors mm_check's role in the original lab: a debugging aid meant
// to be called between operations during development and testing, not on
// every Alloc/Free in production use.
//
// verbose additionally logs every block and every free-list entry as it
// is visited, not just violations.
func (a *Allocator) CheckHeap(verbose bool) int {
	violations := 0
	log := func(format string, args ...any) {
		a.logger.Printf("gomalloc: checkheap: "+format, args...)
	}

	violations += a.checkPrologue(log)
	violations += a.checkHeapWalk(verbose, log)
	violations += a.checkFreeList(verbose, log)

	return violations
}

func (a *Allocator) checkPrologue(log func(string, ...any)) int {
	n := 0
	if size := blockSize(a.start); size != dsize {
		log("prologue size is %d, want %d", size, dsize)
		n++
	}
	if !blockAllocated(a.start) {
		log("prologue is not marked allocated")
		n++
	}
	return n
}

// checkHeapWalk walks every block from the prologue to the epilogue,
// checking each one's internal consistency (checkblock) plus two
// heap-wide invariants the original lab calls out explicitly: no two
// physically adjacent blocks are both free (a coalescing failure), and
// every block lies within the region's committed bounds.
func (a *Allocator) checkHeapWalk(verbose bool, log func(string, ...any)) int {
	n := 0
	prevFree := false
	lo, hi := uintptr(a.ext.Lo()), uintptr(a.ext.Hi())
	for bp := a.start; ; bp = nextBlkp(bp) {
		if verbose {
			a.logger.Printf("gomalloc: checkheap: block %p size=%d alloc=%v",
				bp, blockSize(bp), blockAllocated(bp))
		}
		if uintptr(bp) < lo || uintptr(bp)+blockSize(bp) > hi {
			log("block %p lies outside the region [%#x, %#x)", bp, lo, hi)
			n++
		}
		n += a.checkBlock(bp, log)

		free := !blockAllocated(bp)
		if free && prevFree {
			log("two consecutive free blocks escaped coalescing: %p", bp)
			n++
		}
		prevFree = free

		if blockSize(bp) == 0 {
			// Epilogue: zero size, must be marked allocated (invariant 6),
			// same as the prologue check in checkPrologue. Stop here, the
			// walk is done.
			if !blockAllocated(bp) {
				log("epilogue is not marked allocated")
				n++
			}
			break
		}
	}
	return n
}

// checkBlock validates one block's own header/footer pair and alignment,
// the per-block checks the original lab's checkblock performs.
func (a *Allocator) checkBlock(bp unsafe.Pointer, log func(string, ...any)) int {
	n := 0
	if uintptr(bp)%dsize != 0 {
		log("block %p is not doubleword aligned", bp)
		n++
	}
	hdr := wordaccess.ReadWord(hdrp(bp), 0)
	ftr := wordaccess.ReadWord(ftrp(bp), 0)
	if blockSize(bp) != 0 && hdr != ftr {
		log("block %p header (%#x) does not match footer (%#x)", bp, hdr, ftr)
		n++
	}
	return n
}

// checkFreeList validates the free list itself: every entry must actually
// be marked free (membership check both ways — walking the list and
// finding only free blocks, and walking the heap and finding every free
// block in the list, the latter via a count comparison), and the
// prev/next links must be mutually consistent.
func (a *Allocator) checkFreeList(verbose bool, log func(string, ...any)) int {
	n := 0
	listCount := 0
	for bp := a.listNext(a.sentinel); bp != a.sentinel; bp = a.listNext(bp) {
		if verbose {
			a.logger.Printf("gomalloc: checkheap: free list entry %p size=%d", bp, blockSize(bp))
		}
		if blockAllocated(bp) {
			log("free list contains allocated block %p", bp)
			n++
		}
		if a.listNext(a.listPrev(bp)) != bp {
			log("free list broken: %p's prev does not point back", bp)
			n++
		}
		listCount++
		if listCount > maxFreeListWalk {
			log("free list appears to be cyclic past %d entries", maxFreeListWalk)
			n++
			break
		}
	}

	heapCount := 0
	for bp := a.start; blockSize(bp) != 0; bp = nextBlkp(bp) {
		if !blockAllocated(bp) {
			heapCount++
		}
	}
	if heapCount != listCount {
		log("free block count mismatch: %d in heap walk, %d in free list", heapCount, listCount)
		n++
	}

	return n
}

// maxFreeListWalk bounds the free-list walk so a corrupted (cyclic)
// list can't hang CheckHeap; far larger than any free list this
// allocator could legitimately build given realistic region sizes.
const maxFreeListWalk = 1 << 24
