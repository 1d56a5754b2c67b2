package heap

import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"

func newcachedheap(name string) *Heap {
	h := NewHeap(name, s.Settings{
		"quarantine.size": 1024 * 1024,
	})
	h.SetReporter(&testreporter{})
	return h
}

func TestThreadRegistry(t *testing.T) {
	h := newcachedheap("registry")
	if h.main.Tid() != 0 {
		t.Errorf("expected main thread tid 0, got %v", h.main.Tid())
	}
	t1 := h.NewThread(h.main)
	t2 := h.NewThread(t1)
	if t1.Tid() != 1 || t2.Tid() != 2 {
		t.Errorf("expected tids 1 and 2, got %v and %v", t1.Tid(), t2.Tid())
	}
	if h.FindByTid(1) != t1 || h.FindByTid(2) != t2 {
		t.Errorf("registry lookup broke")
	}
	t1.Announce()
	t1.Announce() // announce-once
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.FindByTid(42)
	}()
}

func TestThreadCacheRefill(t *testing.T) {
	h := newcachedheap("refill")
	p := uintptr(h.Malloc(1024, testtrace)) // class 2048
	m := h.ptrToChunk(p)
	// the bulk refill parked cache.freelist.size/2048 - 1 chunks in
	// the thread's free list.
	nrefill := h.cachefreelist/m.size() - 1
	count := int64(0)
	for fl := h.main.storage.freelists[m.sizeclass]; fl != nil; fl = fl.next {
		if fl.state != chunkAvailable {
			t.Errorf("cached chunk in state %x", fl.state)
		}
		count++
	}
	if count != nrefill {
		t.Errorf("expected %v cached chunks, got %v", nrefill, count)
	}
	// the next allocation of the class is served without refill.
	q := uintptr(h.Malloc(1024, testtrace))
	if h.ptrToChunk(q).addr() != m.addr()+uintptr(m.size()) {
		t.Errorf("expected the adjacent cached chunk")
	}

	// large classes bypass the cache.
	big := uintptr(h.Malloc(h.cachefreelist, testtrace))
	bigclass := h.ptrToChunk(big).sizeclass
	if fl := h.main.storage.freelists[bigclass]; fl != nil {
		t.Errorf("expected no thread cache for large classes")
	}
}

func TestThreadTeardown(t *testing.T) {
	h := newcachedheap("teardown")
	t1 := h.NewThread(h.main)
	h.SetCurrentProvider(func() *Thread { return t1 })

	ptrs := make([]unsafe.Pointer, 10)
	for i := range ptrs {
		ptrs[i] = h.Malloc(1024, testtrace)
	}
	for _, p := range ptrs[:5] {
		h.Free(p, testtrace)
	}
	m := h.ptrToChunk(uintptr(ptrs[5]))
	sizeclass, chunksize := m.sizeclass, m.size()

	cached := int64(0)
	for fl := t1.storage.freelists[sizeclass]; fl != nil; fl = fl.next {
		cached++
	}
	if x := t1.storage.quarantine.size; x != 5*chunksize {
		t.Errorf("expected %v quarantined bytes, got %v", 5*chunksize, x)
	}
	centralbefore := int64(0)
	for fl := h.mi.freelists[sizeclass]; fl != nil; fl = fl.next {
		centralbefore++
	}

	// teardown conserves every cached chunk.
	t1.CommitBack()
	if t1.storage.quarantine.size != 0 {
		t.Errorf("expected drained thread quarantine")
	}
	if t1.storage.freelists[sizeclass] != nil {
		t.Errorf("expected drained thread free list")
	}
	if x := h.mi.quarantine.size; x != 5*chunksize {
		t.Errorf("expected %v central quarantined bytes, got %v",
			5*chunksize, x)
	}
	count := int64(0)
	for fl := h.mi.freelists[sizeclass]; fl != nil; fl = fl.next {
		count++
	}
	if count != centralbefore+cached {
		t.Errorf("expected %v central free chunks, got %v",
			centralbefore+cached, count)
	}
}
