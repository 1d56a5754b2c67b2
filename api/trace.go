package api

// Trace is a captured call stack, outermost frame last.
type Trace []uintptr

// Tracer compresses call stacks into the fixed uint32 slots that the
// allocator keeps inside chunk redzones, and restores them for reports.
// Compression may be lossy, a restored trace is for diagnostics only.
type Tracer interface {
	// Compress stack into dst, return the number of slots written.
	Compress(stack Trace, dst []uint32) int

	// Uncompress restore a trace from compressed slots.
	Uncompress(src []uint32) Trace
}
