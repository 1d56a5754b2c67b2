package heap

import "github.com/bnclabs/sanheap/lib"

// Every chunk of memory handled by the allocator is in one of 3
// states:
//
//	chunkAvailable  in a free list, ready to be allocated.
//	chunkAllocated  allocated and not yet freed.
//	chunkQuarantine freed and held in a quarantine fifo.
//
// The pseudo state chunkMemalign marks a header written at an aligned
// user address that is not the beginning of a chunk, in which case
// `next` holds the address of the real chunk. The magic numbers are
// arbitrary.
const (
	chunkAvailable  = uint16(0x573B)
	chunkAllocated  = uint16(0x3204)
	chunkQuarantine = uint16(0x1978)
	chunkMemalign   = uint16(0xDC68)
)

// invalidTid free_tid of a live allocation.
const invalidTid = int32(-1)

// maxTid bound on thread ids issued by the registry.
const maxTid = (1 << 16) - 1

// Size classes below kMallocSizeClassStep are powers of two. All
// other size classes are multiples of kMallocSizeClassStep.
const kMallocSizeClassStepLog = 26
const kMallocSizeClassStep = int64(1) << kMallocSizeClassStepLog

// kMaxAllowedMallocSize requests larger than this are fatal.
const kMaxAllowedMallocSize = int64(8) << 30

// kNumberOfSizeClasses covers power-of-two classes up to the step and
// the arithmetic progression up to kMaxAllowedMallocSize.
const kNumberOfSizeClasses = kMallocSizeClassStepLog +
	int(kMaxAllowedMallocSize/kMallocSizeClassStep) + 1

// kMinMmapSize smallest mapping requested from the OS for a page
// group. Small size classes share one mapping carved into many chunks.
const kMinMmapSize = lib.OSPageSize * 256

// kMaxAvailableRam bounds the page-group index.
const kMaxAvailableRam = int64(32) << 30
const maxPageGroups = int(kMaxAvailableRam / kMinMmapSize)

// Minredzone smallest redzone width the allocator accepts: the chunk
// header occupies exactly this many bytes and shall fit in the left
// redzone.
const Minredzone = int64(32)
