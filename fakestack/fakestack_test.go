package fakestack

import "testing"

import "github.com/bnclabs/sanheap/lib"
import "github.com/bnclabs/sanheap/shadow"

func TestComputeSizeClass(t *testing.T) {
	ref := map[int64]int64{
		8: 0, 64: 0, 65: 1, 128: 1, 129: 2, 1024: 4,
		MaxFrameSize: kNumberOfSizeClasses - 1,
	}
	for size, expected := range ref {
		if x := computeSizeClass(size); x != expected {
			t.Errorf("size %v expected class %v, got %v", size, expected, x)
		}
	}
	if x := classSize(0); x != 64 {
		t.Errorf("expected %v, got %v", 64, x)
	}
	if x := classSize(kNumberOfSizeClasses - 1); x != MaxFrameSize {
		t.Errorf("expected %v, got %v", MaxFrameSize, x)
	}
}

func TestAllocateDeallocate(t *testing.T) {
	st := New(64 * 1024)
	ptr := st.AllocateStack(64)
	if ptr == 0 {
		t.Fatalf("unexpected allocation failure")
	}
	for off := uintptr(0); off < 64; off += 8 {
		if x := shadow.Value(ptr + off); x != 0 {
			t.Errorf("offset %v expected 0, got %x", off, x)
		}
	}
	if st.AddrIsInFakeStack(ptr) == 0 {
		t.Errorf("expected ptr inside the fake stack")
	}
	if st.AddrIsInFakeStack(0x1000) != 0 {
		t.Errorf("expected foreign address outside the fake stack")
	}

	// use after return: the slot's shadow carries the magic.
	st.DeallocateStack(ptr, 64)
	for off := uintptr(0); off < 64; off += 8 {
		if x := shadow.Value(ptr + off); x != shadow.StackAfterReturnMagic {
			t.Errorf("offset %v expected %x, got %x",
				off, shadow.StackAfterReturnMagic, x)
		}
	}
	st.Cleanup()
}

func TestFifoRecyclingDelay(t *testing.T) {
	backing := int64(4096)
	st := New(backing)
	nslots := backing / 64

	first := st.AllocateStack(64)
	st.DeallocateStack(first, 64)
	// the freed slot is recycled only after every other slot of the
	// class has been handed out.
	for i := int64(1); i < nslots; i++ {
		if ptr := st.AllocateStack(64); ptr == first {
			t.Fatalf("slot recycled after %v allocations", i)
		}
	}
	if ptr := st.AllocateStack(64); ptr != first {
		t.Errorf("expected the freed slot at the end of the fifo")
	}

	// exhausting the backing panics.
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		st.AllocateStack(64)
	}()
	st.Cleanup()
}

func TestCleanup(t *testing.T) {
	st := New(int64(8 * 1024))
	ptr := st.AllocateStack(128)
	st.DeallocateStack(ptr, 128)
	st.Cleanup()
	// cleanup unpoisons the whole backing.
	if x := shadow.Value(ptr); x != 0 {
		t.Errorf("expected unpoisoned shadow after cleanup, got %x", x)
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		st.AllocateStack(64)
	}()
}

func TestClassMmapSize(t *testing.T) {
	st := New(100)
	if x := st.classMmapSize(); x != lib.OSPageSize {
		t.Errorf("expected %v, got %v", lib.OSPageSize, x)
	}
	st = New(5000)
	if x := st.classMmapSize(); x != 8192 {
		t.Errorf("expected %v, got %v", 8192, x)
	}
}
