/*
Package gomalloc is a general-purpose dynamic memory allocator over a
contiguous, monotonically-growable memory region.

It implements the classic allocate/free/reallocate surface of a heap
manager: an explicit boundary-tag block layout, a circular doubly-linked
free list threaded through free-block payloads, first-fit placement with
split-on-excess, four-case boundary-tag coalescing, and a reallocation
engine that prefers growing in place over copying.

The region itself — the sbrk-like "grow by N bytes" primitive — is a
separate collaborator (package region); gomalloc only ever asks it to
extend, never manages its bookkeeping directly.

gomalloc is single-threaded and non-reentrant: every Allocator must be
used from one goroutine at a time, the same way the allocator it replaces
would be.
*/
package gomalloc
