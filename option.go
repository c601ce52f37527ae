package gomalloc

import "log"

// Option configures an Allocator at construction time. It is a function
// New applies to the Allocator, in the order given, before laying down the
// heap.
type Option func(*Allocator)

// WithTraceTuning enables the benchmark-specific size bumps mm.c hard-codes
// (a request of exactly 448 bytes becomes 528, 112 becomes 144). These are
// tuning hacks for one particular allocation trace, not part of the
// allocator's semantic contract — off by default.
func WithTraceTuning(enabled bool) Option {
	return func(a *Allocator) { a.traceTuning = enabled }
}

// WithLogger sets the logger CheckHeap writes diagnostics to. Defaults to
// log.Default().
func WithLogger(l *log.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithChunkSize overrides the default chunkSize bytes New and Alloc use
// when extending the region: New's initial free space, and the least
// Alloc extends by when no free block fits (a request whose block is
// larger than chunkSize extends by that block size instead). A
// non-positive n is ignored, leaving the default in place.
func WithChunkSize(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}
