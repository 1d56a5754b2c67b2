package lib

import "testing"
import "unsafe"

func TestIsPowerOfTwo(t *testing.T) {
	for _, x := range []int64{0, 1, 2, 4, 1024, 1 << 30} {
		if IsPowerOfTwo(x) == false {
			t.Errorf("expected %v to be power of two", x)
		}
	}
	for _, x := range []int64{3, 5, 6, 7, 1023, (1 << 30) + 1} {
		if IsPowerOfTwo(x) == true {
			t.Errorf("expected %v to not be power of two", x)
		}
	}
}

func TestLog2(t *testing.T) {
	for i := int64(0); i < 63; i++ {
		if x := Log2(int64(1) << uint(i)); x != i {
			t.Errorf("expected %v, got %v", i, x)
		}
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		Log2(24)
	}()
}

func TestRoundUpTo(t *testing.T) {
	if x := RoundUpTo(0, 16); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := RoundUpTo(1, 16); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	}
	if x := RoundUpTo(16, 16); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	}
	if x := RoundUpTo(17, 16); x != 32 {
		t.Errorf("expected %v, got %v", 32, x)
	}
	if x := RoundUpTo(13, 8); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	}
}

func TestRoundUpToPowerOfTwo(t *testing.T) {
	ref := map[int64]int64{
		1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 63: 64, 64: 64, 65: 128,
		1000: 1024,
	}
	for size, expected := range ref {
		if x := RoundUpToPowerOfTwo(size); x != expected {
			t.Errorf("size %v expected %v, got %v", size, expected, x)
		}
	}
}

func TestMemcpyMemset(t *testing.T) {
	src, dst := make([]byte, 100), make([]byte, 100)
	for i := range src {
		src[i] = byte(i)
	}
	n := Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 100)
	if n != 100 {
		t.Errorf("expected %v, got %v", 100, n)
	}
	for i := range dst {
		if dst[i] != byte(i) {
			t.Errorf("offset %v expected %v, got %v", i, byte(i), dst[i])
		}
	}
	Memset(unsafe.Pointer(&dst[0]), 0xAB, 50)
	for i := 0; i < 50; i++ {
		if dst[i] != 0xAB {
			t.Errorf("offset %v expected 0xAB, got %x", i, dst[i])
		}
	}
	if dst[50] != 50 {
		t.Errorf("expected %v, got %v", 50, dst[50])
	}
}

func TestMmap(t *testing.T) {
	before := TotalMmaped()
	mem, err := Mmap(OSPageSize * 4)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if int64(len(mem)) != OSPageSize*4 {
		t.Errorf("expected %v, got %v", OSPageSize*4, len(mem))
	}
	mem[0], mem[len(mem)-1] = 0xde, 0xad
	if x := TotalMmaped(); x != before+OSPageSize*4 {
		t.Errorf("expected %v, got %v", before+OSPageSize*4, x)
	}
	if err := Munmap(mem); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	// panic case
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		Mmap(100)
	}()
}
