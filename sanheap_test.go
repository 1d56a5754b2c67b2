package sanheap

import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/golog"
import "github.com/bnclabs/sanheap/lib"
import "github.com/bnclabs/sanheap/shadow"

func init() {
	setts := map[string]interface{}{
		"log.level": "ignore",
		"log.file":  "",
	}
	log.SetLogger(nil, setts)
}

func TestGlobalHeap(t *testing.T) {
	h := Init(s.Settings{"quarantine.size": 1024 * 1024})
	if h == nil {
		t.Fatalf("expected a heap")
	}
	// subsequent Init calls return the same heap.
	if Init(nil) != h {
		t.Errorf("expected the same global heap")
	}

	tr := Capture(0)
	if len(tr) == 0 {
		t.Errorf("expected a captured stack")
	}

	p := Malloc(100, tr)
	if p == nil {
		t.Fatalf("unexpected allocation failure")
	}
	if x := Mzsize(p); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	}
	if x := shadow.Value(uintptr(p)); x != 0 {
		t.Errorf("expected addressable region, got %x", x)
	}
	before := TotalMmaped()
	if before <= 0 {
		t.Errorf("expected mmaped bytes, got %v", before)
	}
	Free(p, tr)
	if x := Mzsize(p); x != 0 {
		t.Errorf("expected 0 after free, got %v", x)
	}

	q := Calloc(4, 25, tr)
	mem := unsafe.Slice((*byte)(q), 100)
	for i, b := range mem {
		if b != 0 {
			t.Errorf("offset %v expected 0, got %v", i, b)
		}
	}
	q = Realloc(q, 200, tr)
	if x := Mzsize(q); x != 200 {
		t.Errorf("expected %v, got %v", 200, x)
	}
	Free(q, tr)

	var aligned unsafe.Pointer
	if rc := PosixMemalign(&aligned, 512, 64, tr); rc != 0 {
		t.Errorf("expected 0, got %v", rc)
	}
	if (uintptr(aligned) & 511) != 0 {
		t.Errorf("expected 512-byte alignment, got %x", aligned)
	}
	Free(aligned, tr)

	v := Valloc(10, tr)
	if (uintptr(v) % uintptr(lib.OSPageSize)) != 0 {
		t.Errorf("expected page alignment, got %x", v)
	}
	pv := Pvalloc(0, tr)
	if x := Mzsize(pv); x != lib.OSPageSize {
		t.Errorf("expected %v, got %v", lib.OSPageSize, x)
	}

	if DescribeHeapAddress(uintptr(v)+2, 1) == false {
		t.Errorf("expected a description")
	}
}

func TestGlobalFakeStack(t *testing.T) {
	Init(nil)
	real := uintptr(0xdeadbeef)
	p := StackMalloc(64, real)
	if p == real {
		t.Fatalf("expected a fake-stack frame")
	}
	if x := shadow.Value(p); x != 0 {
		t.Errorf("expected addressable frame, got %x", x)
	}
	StackFree(p, 64, real)
	if x := shadow.Value(p); x != shadow.StackAfterReturnMagic {
		t.Errorf("expected %x, got %x", shadow.StackAfterReturnMagic, x)
	}
	// the fall-back contract.
	StackFree(real, 64, real)
}
