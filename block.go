package gomalloc

import (
	"unsafe"

	"github.com/cloudwego/gomalloc/internal/wordaccess"
)

// Basic constants, named after the CS:APP memlib/mm convention this
// allocator's block layout is drawn from.
const (
	// wordSize is the natural pointer-sized unit: header/footer/link size.
	wordSize = unsafe.Sizeof(uintptr(0))
	// dsize is the double-word: the alignment and minimum-increment unit.
	dsize = 2 * wordSize
	// minBlockSize is four words: header + prev-link + next-link + footer.
	minBlockSize = 4 * wordSize
	// splitThreshold is the smallest remainder place() will split off,
	// deliberately larger than minBlockSize so splitting never leaves a
	// fragment too small to be worth reusing.
	splitThreshold = 3 * dsize
	// chunkSize is the default amount extendHeap grows the region by when
	// no free block satisfies a request.
	chunkSize = 1 << 12

	allocBit = uintptr(1)
)

// pack combines a block size and an allocated flag into one boundary-tag
// word: the low bit carries the flag, and the bits above those cleared by
// the dsize-1 mask (the low 4 bits on 64-bit) carry the size.
func pack(size uintptr, allocated bool) uintptr {
	if allocated {
		return size | allocBit
	}
	return size
}

func sizeOfWord(w uintptr) uintptr { return w &^ (uintptr(dsize) - 1) }
func allocOfWord(w uintptr) bool   { return w&allocBit != 0 }

// hdrp returns the address of bp's header word.
func hdrp(bp unsafe.Pointer) unsafe.Pointer {
	return wordaccess.At(bp, -int(wordSize))
}

// blockSize returns the size recorded in bp's header.
func blockSize(bp unsafe.Pointer) uintptr {
	return sizeOfWord(wordaccess.ReadWord(hdrp(bp), 0))
}

// blockAllocated reports whether bp's header marks it allocated.
func blockAllocated(bp unsafe.Pointer) bool {
	return allocOfWord(wordaccess.ReadWord(hdrp(bp), 0))
}

// ftrp returns the address of bp's footer word, computed from the size
// recorded in bp's own header.
func ftrp(bp unsafe.Pointer) unsafe.Pointer {
	return wordaccess.At(bp, int(blockSize(bp))-int(dsize))
}

// setHeaderFooter writes size|allocated into both bp's header and footer.
func setHeaderFooter(bp unsafe.Pointer, size uintptr, allocated bool) {
	w := pack(size, allocated)
	wordaccess.WriteWord(hdrp(bp), 0, w)
	wordaccess.WriteWord(bp, int(size)-int(dsize), w)
}

// nextBlkp returns the block physically following bp, found by walking
// forward bp's own size. Safe at the tail because the epilogue's
// zero-size allocated header stops any further walk from misreading past
// the region.
func nextBlkp(bp unsafe.Pointer) unsafe.Pointer {
	return wordaccess.At(bp, int(blockSize(bp)))
}

// prevBlkp returns the block physically preceding bp, found via its
// footer (the boundary tag that makes O(1) backward traversal possible).
func prevBlkp(bp unsafe.Pointer) unsafe.Pointer {
	prevFtr := wordaccess.At(bp, -int(dsize))
	prevSize := sizeOfWord(wordaccess.ReadWord(prevFtr, 0))
	return wordaccess.At(bp, -int(prevSize))
}
