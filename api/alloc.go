package api

import "unsafe"

// Mzer interface for a poisoning heap allocator. Every allocation is
// surrounded by poisoned redzone bytes and every freed region lingers
// in a quarantine before it can be recycled.
type Mzer interface {
	// Memalign allocate `size` bytes aligned to `alignment`, which
	// shall be a power of two. Size 0 is promoted to 1 byte.
	Memalign(alignment, size int64, trace Trace) unsafe.Pointer

	// Malloc allocate `size` bytes with default alignment.
	Malloc(size int64, trace Trace) unsafe.Pointer

	// Calloc allocate and zero nmemb*size bytes.
	Calloc(nmemb, size int64, trace Trace) unsafe.Pointer

	// Free release an allocation. Freeing nil is a no-op. Double free
	// and free of a non-allocated pointer are fatal.
	Free(ptr unsafe.Pointer, trace Trace)

	// Realloc resize an allocation, copying min(old, new) bytes.
	Realloc(ptr unsafe.Pointer, size int64, trace Trace) unsafe.Pointer

	// Valloc allocate page-aligned memory.
	Valloc(size int64, trace Trace) unsafe.Pointer

	// Pvalloc allocate page-aligned memory, size rounded up to a
	// multiple of the page size, 0 becomes one page.
	Pvalloc(size int64, trace Trace) unsafe.Pointer

	// Mzsize return the user size of an active allocation, else 0.
	Mzsize(ptr unsafe.Pointer) int64

	// Release the heap's resources. Meant for tests and teardown;
	// page groups are not returned to the OS.
	Release()
}
