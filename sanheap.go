package sanheap

import "runtime"
import "sync"
import "unsafe"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/sanheap/api"
import "github.com/bnclabs/sanheap/heap"

var initonce sync.Once
var ghp *heap.Heap

// Defaultsettings for the global heap, see heap.Defaultsettings.
func Defaultsettings() s.Settings {
	return heap.Defaultsettings()
}

// Init the process-global heap. Subsequent calls are no-ops; the
// first caller's settings win. Entry points called before Init
// initialize the heap with default settings.
func Init(setts s.Settings) *heap.Heap {
	initonce.Do(func() {
		ghp = heap.NewHeap("global", setts)
	})
	return ghp
}

func gheap() *heap.Heap {
	return Init(nil)
}

// Capture the current call stack, skipping `skip` innermost frames.
// Convenience for hosts without their own trace capture.
func Capture(skip int) api.Trace {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	return api.Trace(pcs[:n])
}

// Memalign allocate `size` bytes aligned to `alignment`.
func Memalign(alignment, size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Memalign(alignment, size, tr)
}

// Malloc allocate `size` bytes.
func Malloc(size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Malloc(size, tr)
}

// Calloc allocate and zero nmemb*size bytes.
func Calloc(nmemb, size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Calloc(nmemb, size, tr)
}

// Free release an allocation, nil is a no-op.
func Free(ptr unsafe.Pointer, tr api.Trace) {
	gheap().Free(ptr, tr)
}

// Realloc resize an allocation.
func Realloc(ptr unsafe.Pointer, size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Realloc(ptr, size, tr)
}

// Valloc allocate page-aligned memory.
func Valloc(size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Valloc(size, tr)
}

// Pvalloc allocate whole page-aligned pages, 0 becomes one page.
func Pvalloc(size int64, tr api.Trace) unsafe.Pointer {
	return gheap().Pvalloc(size, tr)
}

// PosixMemalign write an aligned allocation into memptr, return 0.
func PosixMemalign(
	memptr *unsafe.Pointer, alignment, size int64, tr api.Trace) int {

	return gheap().PosixMemalign(memptr, alignment, size, tr)
}

// Mzsize user size of an active allocation, else 0.
func Mzsize(ptr unsafe.Pointer) int64 {
	return gheap().Mzsize(ptr)
}

// DescribeHeapAddress emit a structured description of addr.
func DescribeHeapAddress(addr uintptr, accesssize int64) bool {
	return gheap().DescribeHeapAddress(addr, accesssize)
}

// TotalMmaped running byte total of OS-backed mappings.
func TotalMmaped() int64 {
	return gheap().TotalMmaped()
}

// StackMalloc allocate a fake-stack frame, falling back to the real
// stack when no current thread is set.
func StackMalloc(size int64, realstack uintptr) uintptr {
	return gheap().StackMalloc(size, realstack)
}

// StackFree return a fake-stack frame, a no-op when StackMalloc fell
// back to the real stack.
func StackFree(ptr uintptr, size int64, realstack uintptr) {
	gheap().StackFree(ptr, size, realstack)
}
