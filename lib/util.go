package lib

import "fmt"
import "math/bits"
import "unsafe"

// IsPowerOfTwo check whether x is a power of two. Zero counts as a
// power of two, matching the x&(x-1) idiom.
func IsPowerOfTwo(x int64) bool {
	return (x & (x - 1)) == 0
}

// IsAligned check whether addr is a multiple of alignment, which
// shall be a power of two.
func IsAligned(addr uintptr, alignment int64) bool {
	return (addr & uintptr(alignment-1)) == 0
}

// Log2 return the base-2 logarithm of x, which shall be a power of two.
func Log2(x int64) int64 {
	if x <= 0 || !IsPowerOfTwo(x) {
		panicerr("Log2(%v): not a power of two", x)
	}
	return int64(bits.TrailingZeros64(uint64(x)))
}

// RoundUpTo round size up to the next multiple of boundary, which
// shall be a power of two.
func RoundUpTo(size, boundary int64) int64 {
	if !IsPowerOfTwo(boundary) {
		panicerr("RoundUpTo(%v): boundary not a power of two", boundary)
	}
	return (size + boundary - 1) &^ (boundary - 1)
}

// RoundUpToPowerOfTwo round size up to the next power of two.
func RoundUpToPowerOfTwo(size int64) int64 {
	if size <= 0 {
		panicerr("RoundUpToPowerOfTwo(%v): size shall be positive", size)
	}
	if IsPowerOfTwo(size) {
		return size
	}
	up := bits.Len64(uint64(size))
	return int64(1) << uint(up)
}

// Memcpy copy memory block of length `ln` from `src` to `dst`. This
// function is useful if memory block is obtained outside golang runtime.
func Memcpy(dst, src unsafe.Pointer, ln int) int {
	dstnd := unsafe.Slice((*byte)(dst), ln)
	srcnd := unsafe.Slice((*byte)(src), ln)
	return copy(dstnd, srcnd)
}

// Memset fill memory block of length `ln` at `dst` with byte `b`.
func Memset(dst unsafe.Pointer, b byte, ln int) {
	dstnd := unsafe.Slice((*byte)(dst), ln)
	for i := range dstnd {
		dstnd[i] = b
	}
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
