package heap

import "github.com/bnclabs/sanheap/api"

// pctracer default api.Tracer. Slot 0 carries the frame count, the
// remaining slots carry program counters truncated to 32 bits. Good
// enough for symbolization against a fixed text segment; hosts with
// wider address spaces shall supply their own codec.
type pctracer struct{}

// NewTracer default trace codec used when the host supplies none.
func NewTracer() api.Tracer {
	return pctracer{}
}

func (pctracer) Compress(stack api.Trace, dst []uint32) int {
	if len(dst) == 0 {
		return 0
	}
	n := len(stack)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	dst[0] = uint32(n)
	for i := 0; i < n; i++ {
		dst[i+1] = uint32(stack[i])
	}
	return n + 1
}

func (pctracer) Uncompress(src []uint32) api.Trace {
	if len(src) == 0 {
		return nil
	}
	n := int(src[0])
	if n > len(src)-1 {
		n = len(src) - 1
	}
	stack := make(api.Trace, n)
	for i := 0; i < n; i++ {
		stack[i] = uintptr(src[i+1])
	}
	return stack
}
