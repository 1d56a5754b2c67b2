package heap

import "unsafe"

import "github.com/bnclabs/sanheap/api"

// chunk header prepended to every allocation unit, embedded at the
// head of the unit's left redzone. The compressed allocation stack
// lives in the left redzone immediately after the header; once freed,
// the compressed free stack overwrites the first user bytes, which is
// safe because those bytes are poisoned until the chunk is recycled.
type chunk struct {
	state     uint16
	sizeclass uint8
	_         uint8
	offset    uint32 // user-visible memory starts at this+offset
	alloctid  int32
	freetid   int32
	usedsize  int64 // size requested by the user
	next      *chunk
}

const chunksize = int64(unsafe.Sizeof(chunk{})) // == Minredzone

func chunkat(addr uintptr) *chunk {
	return (*chunk)(unsafe.Pointer(addr))
}

func (m *chunk) addr() uintptr {
	return uintptr(unsafe.Pointer(m))
}

// beg first user-visible byte of the chunk.
func (m *chunk) beg() uintptr {
	return m.addr() + uintptr(m.offset)
}

// size of the chunk's slab, distinct from usedsize.
func (m *chunk) size() int64 {
	return sizeClassToSize(m.sizeclass)
}

// compressedAllocStack slots in the left redzone after the header.
func (m *chunk) compressedAllocStack(redzone int64) []uint32 {
	n := (redzone - chunksize) / 4
	return unsafe.Slice((*uint32)(unsafe.Pointer(m.addr()+uintptr(chunksize))), n)
}

// compressedFreeStack slots in the first user bytes.
func (m *chunk) compressedFreeStack(redzone int64) []uint32 {
	n := redzone / 4
	return unsafe.Slice((*uint32)(unsafe.Pointer(m.beg())), n)
}

func (m *chunk) addrIsInside(addr uintptr, accesssize int64) (int64, bool) {
	if addr >= m.beg() && addr+uintptr(accesssize) <= m.beg()+uintptr(m.usedsize) {
		return int64(addr - m.beg()), true
	}
	return 0, false
}

func (m *chunk) addrIsAtLeft(addr uintptr, accesssize int64) (int64, bool) {
	if addr >= m.addr() && addr < m.beg() {
		return int64(m.beg() - addr), true
	}
	return 0, false
}

func (m *chunk) addrIsAtRight(
	addr uintptr, accesssize int64, redzone int64) (int64, bool) {

	regionend := m.beg() + uintptr(m.usedsize)
	if addr+uintptr(accesssize) >= regionend &&
		addr < m.addr()+uintptr(m.size()+redzone) {

		if addr <= regionend {
			return 0, true
		}
		return int64(addr - regionend), true
	}
	return 0, false
}

// region event for the reporter describing where addr landed relative
// to this chunk's user region.
func (m *chunk) region(
	addr uintptr, accesssize, redzone int64) api.Region {

	r := api.Region{
		Addr: addr, Begin: m.beg(), Size: m.usedsize,
	}
	if off, ok := m.addrIsInside(addr, accesssize); ok {
		r.Relation, r.Offset = api.RegionInside, off
	} else if off, ok := m.addrIsAtLeft(addr, accesssize); ok {
		r.Relation, r.Offset = api.RegionLeft, off
	} else if off, ok := m.addrIsAtRight(addr, accesssize, redzone); ok {
		r.Relation, r.Offset = api.RegionRight, off
	}
	return r
}
