package heap

import "github.com/bnclabs/sanheap/lib"

// sizeClassToSize size of chunks in the given class. Classes at or
// below the step log are powers of two, classes above it step by
// kMallocSizeClassStep.
func sizeClassToSize(sizeclass uint8) int64 {
	if int(sizeclass) >= kNumberOfSizeClasses {
		panicerr("sizeClassToSize(%v): no such class", sizeclass)
	}
	if sizeclass <= kMallocSizeClassStepLog {
		return int64(1) << sizeclass
	}
	return int64(sizeclass-kMallocSizeClassStepLog) * kMallocSizeClassStep
}

// sizeToSizeClass smallest class whose chunk size covers `size`.
func sizeToSizeClass(size int64) uint8 {
	var res int64
	if size <= kMallocSizeClassStep {
		res = lib.Log2(lib.RoundUpToPowerOfTwo(size))
	} else {
		n := (size + kMallocSizeClassStep - 1) / kMallocSizeClassStep
		res = n + kMallocSizeClassStepLog
	}
	if int(res) >= kNumberOfSizeClasses {
		panicerr("sizeToSizeClass(%v): class %v out of range", size, res)
	} else if size > sizeClassToSize(uint8(res)) {
		panicerr("sizeToSizeClass(%v): class %v too small", size, res)
	}
	return uint8(res)
}
