package heap

import "math/rand"
import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"
import "golang.org/x/sync/errgroup"

// hammer the central path from several goroutines; with no current
// thread every operation goes through the coarse lock.
func TestConcurrentCentralPath(t *testing.T) {
	h := NewHeap("concur", s.Settings{
		"quarantine.size":       256 * 1024,
		"cache.freelist.size":   1,
		"cache.quarantine.size": 1,
	})
	h.SetReporter(&testreporter{})
	h.SetCurrentProvider(func() *Thread { return nil })

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		seed := int64(i)
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			ptrs := make([]unsafe.Pointer, 0, 64)
			for j := 0; j < 1000; j++ {
				size := int64(1 + r.Intn(4096))
				ptrs = append(ptrs, h.Malloc(size, testtrace))
				if len(ptrs) > 32 {
					h.Free(ptrs[0], testtrace)
					ptrs = ptrs[1:]
				}
			}
			for _, p := range ptrs {
				h.Free(p, testtrace)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if x := h.mi.quarantine.size; x > h.quarantinesize {
		t.Errorf("quarantine %v exceeds budget %v", x, h.quarantinesize)
	}
}
