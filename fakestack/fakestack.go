// Package fakestack implements a per-thread side store of heap-backed
// stack slots. Instrumented code relocates stack frames into fake
// stack slots so that a return-to-freed-frame bug dereferences memory
// whose shadow is poisoned with the stack-after-return magic.
//
// Slots are organized by power-of-two size classes. Each class owns a
// single lazily-mapped backing carved into equal slots and a fifo of
// free slots. The fifo pops oldest-first and pushes newest-last, so a
// returned slot is recycled only after every other slot of the class
// has been handed out, maximizing the window in which a stale pointer
// still lands on poisoned shadow.
package fakestack

import "unsafe"

import "github.com/bnclabs/sanheap/lib"
import "github.com/bnclabs/sanheap/shadow"

// kMinStackFrameSizeLog smallest slot is 64 bytes.
const kMinStackFrameSizeLog = 6

// kNumberOfSizeClasses slots range from 64 bytes to 64KB.
const kNumberOfSizeClasses = 11

// MaxFrameSize largest pseudo-frame the fake stack serves.
const MaxFrameSize = int64(1) << (kMinStackFrameSizeLog + kNumberOfSizeClasses - 1)

type fifonode struct {
	next *fifonode
}

// fifolist of free slots, linked through the slot memory itself.
type fifolist struct {
	first *fifonode
	last  *fifonode
}

func (fl *fifolist) push(a uintptr) {
	node := (*fifonode)(unsafe.Pointer(a))
	node.next = nil
	if fl.first == nil && fl.last == nil {
		fl.first, fl.last = node, node
		return
	}
	fl.last.next = node
	fl.last = node
}

func (fl *fifolist) pop() uintptr {
	if fl.first == nil {
		panic("fakestack: exhausted fake stack")
	}
	res := fl.first
	if fl.first == fl.last {
		fl.first, fl.last = nil, nil
	} else {
		fl.first = res.next
	}
	return uintptr(unsafe.Pointer(res))
}

// Stack per-thread fake stack allocator. Touched only by its owning
// thread, no locking.
type Stack struct {
	stacksize int64
	alive     bool
	mappings  [kNumberOfSizeClasses][]byte
	bases     [kNumberOfSizeClasses]uintptr
	classes   [kNumberOfSizeClasses]fifolist
}

// New fake stack whose every class backing is `stacksize` bytes,
// rounded up to a power of two. Backings materialize on first use.
func New(stacksize int64) *Stack {
	if stacksize <= 0 {
		panic("fakestack.New(): stacksize shall be positive")
	}
	return &Stack{stacksize: stacksize, alive: true}
}

func classSize(sizeclass int64) int64 {
	return int64(1) << uint(sizeclass+kMinStackFrameSizeLog)
}

func (st *Stack) classMmapSize() int64 {
	size := lib.RoundUpToPowerOfTwo(st.stacksize)
	if size < lib.OSPageSize {
		size = lib.OSPageSize
	}
	return size
}

func computeSizeClass(allocsize int64) int64 {
	rounded := lib.RoundUpToPowerOfTwo(allocsize)
	log := lib.Log2(rounded)
	res := int64(0)
	if log > kMinStackFrameSizeLog {
		res = log - kMinStackFrameSizeLog
	}
	if res >= kNumberOfSizeClasses {
		panic("fakestack: frame size out of range")
	}
	if classSize(res) < rounded {
		panic("fakestack: class too small")
	}
	return res
}

func (st *Stack) allocateOneSizeClass(sizeclass int64) {
	mmapsize := st.classMmapSize()
	mem, err := lib.Mmap(mmapsize)
	if err != nil {
		panic(err)
	}
	base := uintptr(unsafe.Pointer(&mem[0]))
	// seed the fifo in address order with every slot of the mapping.
	size := classSize(sizeclass)
	for i := int64(0); i+size <= mmapsize; i += size {
		st.classes[sizeclass].push(base + uintptr(i))
	}
	st.mappings[sizeclass] = mem
	st.bases[sizeclass] = base
}

// AllocateStack hand out the oldest free slot of the class covering
// `size`, with [slot, slot+size) unpoisoned. Size shall be a positive
// multiple of the shadow granule, at most MaxFrameSize.
func (st *Stack) AllocateStack(size int64) uintptr {
	if !st.alive {
		panic("fakestack.AllocateStack(): dead fake stack")
	} else if size <= 0 || size > MaxFrameSize {
		panic("fakestack.AllocateStack(): frame size out of range")
	} else if (size % shadow.Granularity) != 0 {
		panic("fakestack.AllocateStack(): unaligned frame size")
	}
	sizeclass := computeSizeClass(size)
	if st.mappings[sizeclass] == nil {
		st.allocateOneSizeClass(sizeclass)
	}
	ptr := st.classes[sizeclass].pop()
	shadow.Poison(ptr, size, 0)
	return ptr
}

// DeallocateStack return a slot, poisoning the whole slot with the
// stack-after-return magic before queueing it for delayed recycling.
func (st *Stack) DeallocateStack(ptr uintptr, size int64) {
	if !st.alive {
		panic("fakestack.DeallocateStack(): dead fake stack")
	}
	sizeclass := computeSizeClass(size)
	if st.mappings[sizeclass] == nil {
		panic("fakestack.DeallocateStack(): class never allocated")
	}
	if !st.addrIsInSizeClass(ptr, sizeclass) ||
		!st.addrIsInSizeClass(ptr+uintptr(size)-1, sizeclass) {
		panic("fakestack.DeallocateStack(): pointer outside class mapping")
	}
	shadow.Poison(ptr, classSize(sizeclass), shadow.StackAfterReturnMagic)
	st.classes[sizeclass].push(ptr)
}

func (st *Stack) addrIsInSizeClass(addr uintptr, sizeclass int64) bool {
	base := st.bases[sizeclass]
	return base != 0 && addr >= base && addr < base+uintptr(st.classMmapSize())
}

// AddrIsInFakeStack return the base of the class mapping containing
// addr, 0 when addr is not fake-stack memory.
func (st *Stack) AddrIsInFakeStack(addr uintptr) uintptr {
	for i := int64(0); i < kNumberOfSizeClasses; i++ {
		if st.addrIsInSizeClass(addr, i) {
			return st.bases[i]
		}
	}
	return 0
}

// Cleanup restore the shadow of every class backing and return the
// mappings to the OS. Call on thread teardown.
func (st *Stack) Cleanup() {
	st.alive = false
	for i := range st.mappings {
		if st.mappings[i] == nil {
			continue
		}
		shadow.Poison(st.bases[i], st.classMmapSize(), 0)
		if err := lib.Munmap(st.mappings[i]); err != nil {
			panic(err)
		}
		st.mappings[i], st.bases[i] = nil, 0
		st.classes[i] = fifolist{}
	}
}
