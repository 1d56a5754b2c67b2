package heap

import "sync"
import "sync/atomic"

import "github.com/bnclabs/sanheap/api"
import "github.com/bnclabs/sanheap/lib"
import "github.com/bnclabs/golog"

// mallocInfo is the central allocator: one free list per size class,
// the global quarantine fifo, the page-group index and one coarse
// mutex covering all three.
type mallocInfo struct {
	h *Heap

	mu         sync.Mutex
	freelists  [kNumberOfSizeClasses]*chunk
	quarantine chunkFifo

	pagegroups  [maxPageGroups]*pageGroup
	npagegroups int32 // atomic
}

// allocateChunks return a singly-linked list of exactly n available
// chunks of the requested class.
func (mi *mallocInfo) allocateChunks(sizeclass uint8, n int64, tr api.Trace) *chunk {
	var m *chunk
	mi.mu.Lock()
	defer mi.mu.Unlock()
	for i := int64(0); i < n; i++ {
		if mi.freelists[sizeclass] == nil {
			mi.freelists[sizeclass] = mi.getNewChunks(sizeclass, tr)
		}
		t := mi.freelists[sizeclass]
		mi.freelists[sizeclass] = t.next
		t.next = m
		assert(t.state == chunkAvailable,
			"allocateChunks(): chunk %x in state %x", t.addr(), t.state)
		m = t
	}
	return m
}

// getNewChunks obtain a fresh page group from the OS and carve it into
// available chunks of the size class. Caller shall hold mi.mu.
func (mi *mallocInfo) getNewChunks(sizeclass uint8, tr api.Trace) *chunk {
	size := sizeClassToSize(sizeclass)
	assert(size < kMinMmapSize || (size%kMinMmapSize) == 0,
		"getNewChunks(): class size %v does not tile %v", size, kMinMmapSize)
	mmapsize := size
	if mmapsize < kMinMmapSize {
		mmapsize = kMinMmapSize
	}
	nchunks := mmapsize / size
	assert(nchunks*size == mmapsize,
		"getNewChunks(): %v chunks of %v do not tile %v", nchunks, size, mmapsize)
	if size < lib.OSPageSize {
		// size is small, reserve the last chunk slot for the
		// page-group descriptor.
		nchunks--
	} else {
		// size is large, append one page for the descriptor.
		mmapsize += lib.OSPageSize
	}
	assert(nchunks > 0, "getNewChunks(): empty page group")

	mem := mi.h.mmapNewPagesAndPoisonShadow(mmapsize, "getNewChunks", tr)
	atomic.AddInt64(&mi.h.stats.mmaps, 1)
	atomic.AddInt64(&mi.h.stats.mmaped, mmapsize)
	atomic.AddInt64(
		&mi.h.stats.mmapedBySize[lib.Log2(lib.RoundUpToPowerOfTwo(size))],
		nchunks)

	var res *chunk
	for i := int64(0); i < nchunks; i++ {
		m := chunkat(mem + uintptr(i*size))
		m.state = chunkAvailable
		m.sizeclass = sizeclass
		m.next = res
		res = m
	}
	// the descriptor region is already poisoned, nothing more to do
	// for its shadow.
	pg := pagegroupat(mem + uintptr(nchunks*size))
	pg.begin = mem
	pg.end = mem + uintptr(mmapsize)
	pg.chunksize = size
	idx := atomic.AddInt32(&mi.npagegroups, 1) - 1
	assert(int(idx) < maxPageGroups, "getNewChunks(): page-group index full")
	mi.pagegroups[idx] = pg
	return res
}

// swallowThreadLocalMallocStorage splice a thread's quarantine onto
// the central quarantine and evict from the oldest end down to the
// configured byte budget. When eatfreelists is set (thread teardown)
// the thread's free lists are prepended to the central ones too.
func (mi *mallocInfo) swallowThreadLocalMallocStorage(
	tls *threadLocalMallocStorage, eatfreelists bool) {

	assert(mi.h.quarantinesize > 0, "swallow(): quarantine budget is 0")
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if tls.quarantine.size > 0 {
		mi.quarantine.pushlist(&tls.quarantine)
		for mi.quarantine.size > mi.h.quarantinesize {
			mi.pop()
		}
	}
	if eatfreelists {
		for sizeclass := 0; sizeclass < kNumberOfSizeClasses; sizeclass++ {
			m := tls.freelists[sizeclass]
			for m != nil {
				t := m.next
				m.next = mi.freelists[sizeclass]
				mi.freelists[sizeclass] = m
				m = t
			}
			tls.freelists[sizeclass] = nil
		}
	}
}

// bypassThreadLocalQuarantine push a single chunk straight onto the
// central quarantine, used when no current thread is set.
func (mi *mallocInfo) bypassThreadLocalQuarantine(m *chunk) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.quarantine.push(m)
	for mi.quarantine.size > mi.h.quarantinesize {
		mi.pop()
	}
}

// pop evict the oldest quarantined chunk back to its free list.
// Caller shall hold mi.mu.
func (mi *mallocInfo) pop() {
	assert(mi.quarantine.size > 0, "pop(): empty quarantine")
	m := mi.quarantine.pop()
	assert(m.state == chunkQuarantine,
		"pop(): chunk %x in state %x", m.addr(), m.state)
	m.state = chunkAvailable
	assert(m.alloctid >= 0, "pop(): alloc tid missing")
	assert(m.freetid >= 0, "pop(): free tid missing")

	sizeclass := m.sizeclass
	m.next = mi.freelists[sizeclass]
	mi.freelists[sizeclass] = m

	atomic.AddInt64(&mi.h.stats.realfrees, 1)
	atomic.AddInt64(&mi.h.stats.reallyfreed, m.usedsize)
}

func (mi *mallocInfo) findPageGroupUnlocked(addr uintptr) *pageGroup {
	n := int(atomic.LoadInt32(&mi.npagegroups))
	for i := 0; i < n; i++ {
		if pg := mi.pagegroups[i]; pg != nil && pg.inRange(addr) {
			return pg
		}
	}
	return nil
}

func (mi *mallocInfo) findPageGroup(addr uintptr) *pageGroup {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.findPageGroupUnlocked(addr)
}

// findMallocedOrFreed reverse-map an arbitrary address to the owning
// chunk via the page-group index.
func (mi *mallocInfo) findMallocedOrFreed(addr uintptr, accesssize int64) *chunk {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.findChunkByAddr(addr)
}

// findChunkByAddr locate the chunk owning addr, attributing redzone
// addresses to the chunk whose overflow they most plausibly indicate.
// Caller shall hold mi.mu.
//
// TODO: the page-group scan is linear; a sorted interval search would
// serve better once the index grows past a few hundred groups.
func (mi *mallocInfo) findChunkByAddr(addr uintptr) *chunk {
	pg := mi.findPageGroupUnlocked(addr)
	if pg == nil {
		return nil
	}
	assert(pg.chunksize > 0, "findChunkByAddr(): zero chunk size")
	offset := addr - pg.begin
	thischunk := pg.begin + (offset/uintptr(pg.chunksize))*uintptr(pg.chunksize)
	assert(pg.inRange(thischunk), "findChunkByAddr(): chunk outside group")
	m := chunkat(thischunk)
	assert(m.state == chunkAllocated || m.state == chunkAvailable ||
		m.state == chunkQuarantine,
		"findChunkByAddr(): chunk %x in state %x", m.addr(), m.state)
	redzone := mi.h.redzone
	if _, ok := m.addrIsInside(addr, 1); ok {
		return m
	}
	if _, ok := m.addrIsAtRight(addr, 1, redzone); ok {
		return m
	}
	offleft, isatleft := m.addrIsAtLeft(addr, 1)
	assert(isatleft, "findChunkByAddr(): %x not related to chunk %x", addr, m.addr())
	if thischunk == pg.begin {
		// leftmost chunk of the group.
		return m
	}
	leftchunk := thischunk - uintptr(pg.chunksize)
	assert(pg.inRange(leftchunk), "findChunkByAddr(): left chunk outside group")
	l := chunkat(leftchunk)
	offright, isatright := l.addrIsAtRight(addr, 1, redzone)
	assert(isatright, "findChunkByAddr(): %x not at right of %x", addr, l.addr())
	if offright < offleft {
		return l
	}
	return m
}

// allocationSize user size of an active allocation, 0 for anything
// else, including addresses the allocator never handed out.
func (mi *mallocInfo) allocationSize(ptr uintptr) int64 {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	// first, check if this is our memory.
	if pg := mi.findPageGroupUnlocked(ptr); pg == nil {
		return 0
	}
	m := mi.h.ptrToChunk(ptr)
	if m.state == chunkAllocated {
		return m.usedsize
	}
	return 0
}

// status log quarantine occupancy and per-class free-list bytes.
func (mi *mallocInfo) status() {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	log.Infof("%v quarantine %v\n",
		mi.h.logprefix, humanbytes(mi.quarantine.size))
	for sizeclass := 1; sizeclass < kNumberOfSizeClasses; sizeclass++ {
		m := mi.freelists[sizeclass]
		if m == nil {
			continue
		}
		total := int64(0)
		for ; m != nil; m = m.next {
			total += m.size()
		}
		log.Verbosef("%v class %v freelist %v\n",
			mi.h.logprefix, sizeclass, humanbytes(total))
	}
}
