package heap

import "sync/atomic"

import "github.com/bnclabs/golog"
import "github.com/bnclabs/sanheap/fakestack"

// threadLocalMallocStorage per-thread free lists and quarantine fifo.
// Touched only by the owning thread, flushed to the central allocator
// in bulk.
type threadLocalMallocStorage struct {
	freelists  [kNumberOfSizeClasses]*chunk
	quarantine chunkFifo
}

// Thread records the allocator-side state of one application thread:
// its malloc storage and its fake stack. Threads are registered with
// the heap and referenced by tid from chunk headers for post-mortem
// reporting.
type Thread struct {
	h         *Heap
	tid       int32
	parenttid int32
	storage   threadLocalMallocStorage
	fstack    *fakestack.Stack
	announced int32 // atomic, announce-once
}

// NewThread register a new thread with the heap. The parent argument
// names the creating thread, nil for the main thread.
func (h *Heap) NewThread(parent *Thread) *Thread {
	tid := atomic.AddInt32(&h.nthreads, 1) - 1
	assert(tid <= maxTid, "NewThread(): tid %v exceeds %v", tid, maxTid)
	t := &Thread{h: h, tid: tid, parenttid: invalidTid}
	if parent != nil {
		t.parenttid = parent.tid
	}
	t.fstack = fakestack.New(h.fakestacksize)
	h.threads[tid] = t
	return t
}

// Tid this thread's id.
func (t *Thread) Tid() int32 {
	return t.tid
}

// FakeStack this thread's fake-stack allocator.
func (t *Thread) FakeStack() *fakestack.Stack {
	return t.fstack
}

// Announce log the thread's lineage once, consumed by the describe
// path when reporting threads involved in a violation.
func (t *Thread) Announce() {
	if atomic.CompareAndSwapInt32(&t.announced, 0, 1) == false {
		return
	}
	if t.parenttid == invalidTid {
		log.Infof("%v thread T%v is the main thread\n", t.h.logprefix, t.tid)
		return
	}
	log.Infof("%v thread T%v created by T%v\n",
		t.h.logprefix, t.tid, t.parenttid)
}

// CommitBack splice this thread's quarantine and free lists into the
// central allocator. Call on thread teardown; the thread's cache shall
// not be used afterwards.
func (t *Thread) CommitBack() {
	t.h.mi.swallowThreadLocalMallocStorage(&t.storage, true /*eatfreelists*/)
	t.fstack.Cleanup()
}

// FindByTid look up a registered thread.
func (h *Heap) FindByTid(tid int32) *Thread {
	assert(tid >= 0 && tid <= maxTid, "FindByTid(%v): out of range", tid)
	t := h.threads[tid]
	assert(t != nil, "FindByTid(%v): no such thread", tid)
	return t
}
