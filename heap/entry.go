package heap

import "unsafe"

import "github.com/bnclabs/sanheap/api"
import "github.com/bnclabs/sanheap/lib"

// Memalign implement api.Mzer{} interface.
func (h *Heap) Memalign(alignment, size int64, tr api.Trace) unsafe.Pointer {
	return unsafe.Pointer(h.allocate(alignment, size, tr))
}

// Malloc implement api.Mzer{} interface.
func (h *Heap) Malloc(size int64, tr api.Trace) unsafe.Pointer {
	return unsafe.Pointer(h.allocate(0, size, tr))
}

// Calloc implement api.Mzer{} interface. Overflow of nmemb*size is the
// caller's problem.
func (h *Heap) Calloc(nmemb, size int64, tr api.Trace) unsafe.Pointer {
	ptr := h.allocate(0, nmemb*size, tr)
	lib.Memset(unsafe.Pointer(ptr), 0, int(nmemb*size))
	return unsafe.Pointer(ptr)
}

// Free implement api.Mzer{} interface.
func (h *Heap) Free(ptr unsafe.Pointer, tr api.Trace) {
	h.deallocate(uintptr(ptr), tr)
}

// Realloc implement api.Mzer{} interface.
func (h *Heap) Realloc(ptr unsafe.Pointer, size int64, tr api.Trace) unsafe.Pointer {
	return unsafe.Pointer(h.reallocate(uintptr(ptr), size, tr))
}

// Valloc implement api.Mzer{} interface.
func (h *Heap) Valloc(size int64, tr api.Trace) unsafe.Pointer {
	return unsafe.Pointer(h.allocate(lib.OSPageSize, size, tr))
}

// Pvalloc implement api.Mzer{} interface.
func (h *Heap) Pvalloc(size int64, tr api.Trace) unsafe.Pointer {
	size = lib.RoundUpTo(size, lib.OSPageSize)
	if size == 0 {
		// pvalloc(0) shall allocate one page.
		size = lib.OSPageSize
	}
	return unsafe.Pointer(h.allocate(lib.OSPageSize, size, tr))
}

// PosixMemalign write an allocation aligned to `alignment` into
// memptr and return 0. Alignment shall be a power of two.
func (h *Heap) PosixMemalign(
	memptr *unsafe.Pointer, alignment, size int64, tr api.Trace) int {

	ptr := h.allocate(alignment, size, tr)
	assert(lib.IsAligned(ptr, alignment), "PosixMemalign(): misaligned result")
	*memptr = unsafe.Pointer(ptr)
	return 0
}

// Mzsize implement api.Mzer{} interface.
func (h *Heap) Mzsize(ptr unsafe.Pointer) int64 {
	return h.mi.allocationSize(uintptr(ptr))
}

// DescribeHeapAddress reverse-map addr to its owning chunk and emit
// the region description, traces and thread summaries through the
// reporter. Returns false when addr is not allocator memory.
func (h *Heap) DescribeHeapAddress(addr uintptr, accesssize int64) bool {
	m := h.mi.findMallocedOrFreed(addr, accesssize)
	if m == nil {
		return false
	}
	h.describechunk(m, addr, accesssize)
	return true
}

// TotalMmaped running byte total of OS-backed mappings.
func (h *Heap) TotalMmaped() int64 {
	return lib.TotalMmaped()
}

// StackMalloc allocate a fake-stack frame for the current thread.
// When no current thread is set the real stack address is returned
// unchanged and the caller keeps using its native frame.
func (h *Heap) StackMalloc(size int64, realstack uintptr) uintptr {
	t := h.Current()
	if t == nil {
		// TSD is gone, use the real stack.
		return realstack
	}
	return t.fstack.AllocateStack(size)
}

// StackFree return a fake-stack frame. A no-op when StackMalloc
// handed back the real stack, or when the thread is already gone.
func (h *Heap) StackFree(ptr uintptr, size int64, realstack uintptr) {
	if ptr == realstack {
		return
	}
	t := h.Current()
	if t == nil {
		// the whole fake stack has been torn down anyway.
		return
	}
	t.fstack.DeallocateStack(ptr, size)
}

// Release implement api.Mzer{} interface. Page groups stay with the
// process; this logs the final accounting and commits the main
// thread's cache back to the central allocator.
func (h *Heap) Release() {
	if h.main != nil {
		h.main.CommitBack()
	}
	h.stats.logstats(h.logprefix)
	h.mi.status()
}
