package heap

import "fmt"
import "sync/atomic"
import "unsafe"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/sanheap/api"
import "github.com/bnclabs/sanheap/lib"
import "github.com/bnclabs/sanheap/shadow"

// Heap a poisoning allocator instance: central allocator, thread
// registry and the public entry-point set. The zero value is not
// usable, construct with NewHeap.
type Heap struct {
	// 64-bit aligned stats
	stats heapstats

	mi       *mallocInfo
	name     string
	threads  []*Thread
	nthreads int32 // atomic
	main     *Thread

	tracer    api.Tracer
	reporter  api.Reporter
	currentfn func() *Thread

	// settings
	redzone          int64
	quarantinesize   int64
	cachefreelist    int64
	cachequarantine  int64
	fakestacksize    int64
	realloczerofrees bool
	debug            bool
	verbose          bool
	statsinterval    int64
	setts            s.Settings
	logprefix        string
}

// Defaultsettings for the heap.
//
// "redzone" (int64, default: 128)
//
//	Width in bytes of the poisoned padding surrounding every
//	allocation. Power of two, at least Minredzone.
//
// "quarantine.size" (int64, default: 64MB)
//
//	Byte budget of the central quarantine. Freed chunks become
//	reusable only after this many bytes of subsequent frees.
//
// "cache.freelist.size" (int64, default: 128KB)
//
//	Bulk-refill budget of per-thread free lists. Classes at or
//	above this size bypass the thread cache.
//
// "cache.quarantine.size" (int64, default: 1MB)
//
//	Byte threshold at which a thread's quarantine is flushed to
//	the central quarantine.
//
// "fakestack.size" (int64, default: 4MB)
//
//	Per-class backing size of each thread's fake stack.
//
// "realloc.zerofrees" (bool, default: false)
//
//	When true, realloc(ptr, 0) frees ptr. The default matches the
//	historical behavior of returning nil without freeing.
//
// "debug" (bool, default: false)
//
//	Enable expensive self-checks and mapping logs.
//
// "verbose" (bool, default: false)
//
//	Log every allocation decision.
//
// "stats.interval" (int64, default: 0)
//
//	Log allocation statistics every so many allocated bytes,
//	0 disables.
func Defaultsettings() s.Settings {
	return s.Settings{
		"redzone":               128,
		"quarantine.size":       64 * 1024 * 1024,
		"cache.freelist.size":   128 * 1024,
		"cache.quarantine.size": 1024 * 1024,
		"fakestack.size":        4 * 1024 * 1024,
		"realloc.zerofrees":     false,
		"debug":                 false,
		"verbose":               false,
		"stats.interval":        0,
	}
}

// NewHeap create a new heap instance. The main thread is registered as
// T0 and serves as the current thread until a provider is wired with
// SetCurrentProvider.
func NewHeap(name string, setts s.Settings) *Heap {
	h := &Heap{name: name}
	h.logprefix = fmt.Sprintf("SANH [%s]", name)

	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	h.readsettings(setts)
	h.setts = setts

	h.mi = &mallocInfo{h: h}
	h.threads = make([]*Thread, maxTid+1)
	h.tracer = NewTracer()
	h.reporter = NewReporter(h.logprefix)

	h.main = h.NewThread(nil)
	h.currentfn = func() *Thread { return h.main }

	log.Infof("%v started ...\n", h.logprefix)
	log.Infof("%v redzone %v quarantine %v\n", h.logprefix,
		h.redzone, humanbytes(h.quarantinesize))
	return h
}

func (h *Heap) readsettings(setts s.Settings) {
	h.redzone = setts.Int64("redzone")
	h.quarantinesize = setts.Int64("quarantine.size")
	h.cachefreelist = setts.Int64("cache.freelist.size")
	h.cachequarantine = setts.Int64("cache.quarantine.size")
	h.fakestacksize = setts.Int64("fakestack.size")
	h.realloczerofrees = setts.Bool("realloc.zerofrees")
	h.debug = setts.Bool("debug")
	h.verbose = setts.Bool("verbose")
	h.statsinterval = setts.Int64("stats.interval")

	if !lib.IsPowerOfTwo(h.redzone) || h.redzone < Minredzone {
		panicerr("redzone %v shall be a power of two >= %v",
			h.redzone, Minredzone)
	} else if h.redzone < shadow.Granularity {
		panicerr("redzone %v below shadow granularity", h.redzone)
	} else if h.redzone < chunksize {
		panicerr("redzone %v cannot hold the chunk header", h.redzone)
	} else if h.quarantinesize <= 0 {
		panicerr("quarantine.size shall be positive")
	}
}

// SetCurrentProvider wire the host's notion of the current thread.
// The provider may return nil, in which case operations fall back to
// the central path and are attributed to thread 0.
func (h *Heap) SetCurrentProvider(fn func() *Thread) {
	h.currentfn = fn
}

// SetTracer replace the default trace codec.
func (h *Heap) SetTracer(tracer api.Tracer) {
	h.tracer = tracer
}

// SetReporter replace the default diagnostic reporter.
func (h *Heap) SetReporter(reporter api.Reporter) {
	h.reporter = reporter
}

// Current the current thread, possibly nil.
func (h *Heap) Current() *Thread {
	return h.currentfn()
}

func (h *Heap) currenttid() int32 {
	if t := h.Current(); t != nil {
		return t.tid
	}
	return 0
}

// ptrToChunk locate the chunk owning a user pointer, walking through a
// memalign forwarder if one was planted at ptr-redzone.
func (h *Heap) ptrToChunk(ptr uintptr) *chunk {
	m := chunkat(ptr - uintptr(h.redzone))
	if m.state == chunkMemalign {
		m = m.next
	}
	return m
}

// mmapNewPagesAndPoisonShadow obtain pages from the OS and poison the
// entire mapping's shadow with the left-redzone magic. A failed mmap
// is fatal.
func (h *Heap) mmapNewPagesAndPoisonShadow(
	size int64, memtype string, tr api.Trace) uintptr {

	mem, err := lib.Mmap(size)
	if err != nil {
		h.reporter.OutOfMemory(memtype, size, h.currenttid(), tr)
		h.reporter.Fatal("mmap of %v bytes failed: %v", size, err)
		return 0
	}
	base := uintptr(unsafe.Pointer(&mem[0]))
	shadow.Poison(base, size, shadow.HeapLeftRedzoneMagic)
	if h.debug {
		log.Debugf("%v MMAP [%x,%x)\n", h.logprefix, base, base+uintptr(size))
	}
	return base
}

func (h *Heap) allocate(alignment, size int64, tr api.Trace) uintptr {
	if size == 0 {
		size = 1
	}
	assert(lib.IsPowerOfTwo(alignment),
		"allocate(): alignment %v not a power of two", alignment)
	roundedsize := lib.RoundUpTo(size, h.redzone)
	neededsize := roundedsize + h.redzone
	if alignment > h.redzone {
		neededsize += alignment
	}
	assert((neededsize%h.redzone) == 0, "allocate(): rounding broke")
	if neededsize > kMaxAllowedMallocSize {
		h.reporter.OutOfMemory("allocate", size, h.currenttid(), tr)
		h.reporter.Fatal("allocation of %v bytes exceeds maximum %v",
			size, kMaxAllowedMallocSize)
		return 0
	}

	sizeclass := sizeToSizeClass(neededsize)
	sizetoallocate := sizeClassToSize(sizeclass)
	assert(sizetoallocate >= 2*h.redzone,
		"allocate(): class size %v below minimum", sizetoallocate)
	assert(sizetoallocate >= neededsize, "allocate(): class too small")
	assert((sizetoallocate%h.redzone) == 0, "allocate(): class unaligned")

	if h.verbose {
		fmsg := "%v allocate align: %v size: %v class: %v real: %v\n"
		log.Verbosef(fmsg, h.logprefix, alignment, size, sizeclass, sizetoallocate)
	}

	atomic.AddInt64(&h.stats.mallocs, 1)
	atomic.AddInt64(&h.stats.malloced, size)
	atomic.AddInt64(&h.stats.mallocedRedzones, sizetoallocate-size)
	bysize := lib.Log2(lib.RoundUpToPowerOfTwo(sizetoallocate))
	atomic.AddInt64(&h.stats.mallocedBySize[bysize], 1)
	if h.statsinterval > 0 {
		if x := atomic.AddInt64(&h.stats.sincelast, size); x > h.statsinterval {
			atomic.StoreInt64(&h.stats.sincelast, 0)
			h.stats.logstats(h.logprefix)
			h.mi.status()
		}
	}

	t := h.Current()
	var m *chunk
	if t == nil || sizetoallocate >= h.cachefreelist {
		// get directly from central storage.
		m = h.mi.allocateChunks(sizeclass, 1, tr)
		atomic.AddInt64(&h.stats.mallocLarge, 1)
	} else {
		// get from the thread-local storage.
		fl := &t.storage.freelists[sizeclass]
		if *fl == nil {
			nnewchunks := h.cachefreelist / sizetoallocate
			*fl = h.mi.allocateChunks(sizeclass, nnewchunks, tr)
			atomic.AddInt64(&h.stats.mallocSmallSlow, 1)
		}
		m = *fl
		*fl = m.next
	}
	assert(m != nil, "allocate(): refill returned no chunk")
	assert(m.state == chunkAvailable,
		"allocate(): chunk %x in state %x", m.addr(), m.state)
	m.state = chunkAllocated
	m.next = nil
	assert(m.size() == sizetoallocate, "allocate(): class mismatch")

	addr := m.addr() + uintptr(h.redzone)
	if alignment > h.redzone && !lib.IsAligned(addr, alignment) {
		addr = (addr + uintptr(alignment-1)) &^ uintptr(alignment-1)
		assert(lib.IsAligned(addr, alignment), "allocate(): alignment broke")
		p := chunkat(addr - uintptr(h.redzone))
		p.state = chunkMemalign
		p.next = m
	}
	assert(h.ptrToChunk(addr) == m, "allocate(): forwarder broke")
	m.usedsize = size
	m.offset = uint32(addr - m.addr())
	assert(m.beg() == addr, "allocate(): offset broke")
	m.alloctid = h.currenttid()
	m.freetid = invalidTid
	h.tracer.Compress(tr, m.compressedAllocStack(h.redzone))

	shadow.Poison(addr, roundedsize, 0)
	if size < roundedsize {
		shadow.PoisonPartialRightRedzone(
			addr+uintptr(roundedsize-h.redzone), size&(h.redzone-1),
			h.redzone, shadow.HeapRightRedzoneMagic)
	}
	return addr
}

func (h *Heap) deallocate(ptr uintptr, tr api.Trace) {
	if ptr == 0 {
		return
	}
	if h.debug {
		assert(h.mi.findPageGroup(ptr) != nil,
			"deallocate(%x): not allocator memory", ptr)
	}
	m := h.ptrToChunk(ptr)
	if m.state == chunkQuarantine {
		h.reporter.DoubleFree(ptr, tr)
		h.describechunk(m, ptr, 1)
		h.reporter.Fatal("double free on %x", ptr)
		return
	} else if m.state != chunkAllocated {
		h.reporter.FreeNotMalloced(ptr, tr)
		h.reporter.Fatal("free on non-malloced address %x", ptr)
		return
	}
	assert(m.freetid == invalidTid, "deallocate(): free tid already set")
	assert(m.alloctid >= 0, "deallocate(): alloc tid missing")

	t := h.Current()
	if t != nil {
		m.freetid = t.tid
	} else {
		m.freetid = 0
	}
	h.tracer.Compress(tr, m.compressedFreeStack(h.redzone))
	roundedsize := lib.RoundUpTo(m.usedsize, h.redzone)
	shadow.Poison(ptr, roundedsize, shadow.HeapFreeMagic)

	atomic.AddInt64(&h.stats.frees, 1)
	atomic.AddInt64(&h.stats.freed, m.usedsize)
	bysize := lib.Log2(lib.RoundUpToPowerOfTwo(m.size()))
	atomic.AddInt64(&h.stats.freedBySize[bysize], 1)

	m.state = chunkQuarantine
	if t != nil {
		assert(m.next == nil, "deallocate(): chunk still linked")
		t.storage.quarantine.push(m)
		if t.storage.quarantine.size > h.cachequarantine {
			h.mi.swallowThreadLocalMallocStorage(&t.storage, false)
		}
	} else {
		assert(m.next == nil, "deallocate(): chunk still linked")
		h.mi.bypassThreadLocalQuarantine(m)
	}
}

func (h *Heap) reallocate(ptr uintptr, size int64, tr api.Trace) uintptr {
	if ptr == 0 {
		return h.allocate(0, size, tr)
	}
	if size == 0 {
		// historical libc behavior, see "realloc.zerofrees".
		if h.realloczerofrees {
			h.deallocate(ptr, tr)
		}
		return 0
	}
	atomic.AddInt64(&h.stats.reallocs, 1)
	atomic.AddInt64(&h.stats.realloced, size)
	m := h.ptrToChunk(ptr)
	assert(m.state == chunkAllocated,
		"reallocate(%x): chunk in state %x", ptr, m.state)
	memcpysize := m.usedsize
	if size < memcpysize {
		memcpysize = size
	}
	newptr := h.allocate(0, size, tr)
	lib.Memcpy(unsafe.Pointer(newptr), unsafe.Pointer(ptr), int(memcpysize))
	h.deallocate(ptr, tr)
	return newptr
}

// describechunk emit the region event and the chunk's traces and
// thread summaries through the reporter.
func (h *Heap) describechunk(m *chunk, addr uintptr, accesssize int64) {
	h.reporter.Region(m.region(addr, accesssize, h.redzone))
	assert(m.alloctid >= 0, "describechunk(): alloc tid missing")
	allocstack := h.tracer.Uncompress(m.compressedAllocStack(h.redzone))
	if m.freetid >= 0 {
		freestack := h.tracer.Uncompress(m.compressedFreeStack(h.redzone))
		h.reporter.FreedBy(m.freetid, freestack)
		h.reporter.AllocatedBy(m.alloctid, allocstack)
		if t := h.Current(); t != nil {
			t.Announce()
		}
		h.FindByTid(m.freetid).Announce()
		h.FindByTid(m.alloctid).Announce()
		return
	}
	h.reporter.AllocatedBy(m.alloctid, allocstack)
	if t := h.Current(); t != nil {
		t.Announce()
	}
	h.FindByTid(m.alloctid).Announce()
}
