package heap

import "testing"

func TestSizeClassToSize(t *testing.T) {
	ref := map[uint8]int64{
		0: 1, 6: 64, 10: 1024, 26: 1 << 26,
		27: 1 * kMallocSizeClassStep, 28: 2 * kMallocSizeClassStep,
	}
	for sizeclass, expected := range ref {
		if x := sizeClassToSize(sizeclass); x != expected {
			t.Errorf("class %v expected %v, got %v", sizeclass, expected, x)
		}
	}

	// panic case
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		sizeClassToSize(uint8(kNumberOfSizeClasses))
	}()
}

func TestSizeToSizeClass(t *testing.T) {
	ref := map[int64]uint8{
		1: 0, 2: 1, 3: 2, 64: 6, 65: 7, 1024: 10, 1025: 11,
		kMallocSizeClassStep:     26,
		kMallocSizeClassStep + 1: 28,
	}
	for size, expected := range ref {
		if x := sizeToSizeClass(size); x != expected {
			t.Errorf("size %v expected class %v, got %v", size, expected, x)
		}
	}
}

func TestSizeClassMonotone(t *testing.T) {
	// class(s1) <= class(s2) for s1 < s2, and the class always covers
	// the request.
	sizes := []int64{}
	for size := int64(1); size <= (1 << 20); size = size*2 + 7 {
		sizes = append(sizes, size)
	}
	sizes = append(
		sizes, kMallocSizeClassStep-1, kMallocSizeClassStep,
		kMallocSizeClassStep+1, 3*kMallocSizeClassStep,
		kMaxAllowedMallocSize)
	prevclass := uint8(0)
	prevsize := int64(0)
	for _, size := range sizes {
		if size < prevsize {
			continue
		}
		sizeclass := sizeToSizeClass(size)
		if sizeclass < prevclass {
			t.Errorf("size %v class %v < previous %v", size, sizeclass, prevclass)
		}
		if x := sizeClassToSize(sizeclass); x < size {
			t.Errorf("size %v class %v covers only %v", size, sizeclass, x)
		}
		prevclass, prevsize = sizeclass, size
	}
}
