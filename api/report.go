package api

// Relation of an address to an allocated region.
type Relation string

const (
	// RegionInside addr falls within the user bytes of the region.
	RegionInside Relation = "inside"
	// RegionLeft addr falls in the left redzone or header.
	RegionLeft Relation = "to the left of"
	// RegionRight addr falls in the right redzone.
	RegionRight Relation = "to the right of"
)

// Region describes where an address landed relative to a heap region,
// `Addr` is `Offset` bytes `Relation` the region [Begin, Begin+Size).
type Region struct {
	Addr     uintptr
	Relation Relation
	Offset   int64
	Begin    uintptr
	Size     int64
}

// Reporter consumes structured diagnostic events from the allocator.
// The allocator considers the application untrustworthy once a
// memory-safety violation is detected: after emitting the relevant
// events it calls Fatal, which shall not return.
type Reporter interface {
	// OutOfMemory a mapping failed or a request exceeded the maximum.
	OutOfMemory(memtype string, size int64, tid int32, trace Trace)

	// DoubleFree the free target was already in quarantine.
	DoubleFree(addr uintptr, trace Trace)

	// FreeNotMalloced the free target was never allocated.
	FreeNotMalloced(addr uintptr, trace Trace)

	// Region a reverse lookup resolved addr to a heap region.
	Region(r Region)

	// AllocatedBy the region was allocated by thread `tid` at `trace`.
	AllocatedBy(tid int32, trace Trace)

	// FreedBy the region was freed by thread `tid` at `trace`.
	FreedBy(tid int32, trace Trace)

	// Fatal abort the process. Shall not return.
	Fatal(fmsg string, args ...interface{})
}
