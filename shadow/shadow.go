package shadow

import "fmt"
import "sync"

// Granularity application bytes covered by one shadow byte.
const Granularity = int64(8)

// Poison palette. Values above 0xf0 never collide with partial-granule
// counts, which are always below Granularity.
const (
	// HeapLeftRedzoneMagic poisons chunk headers and left padding, and
	// every byte of a fresh mapping before first use.
	HeapLeftRedzoneMagic = byte(0xfa)
	// HeapRightRedzoneMagic poisons the granules that follow an
	// allocation's last addressable byte, up to the next redzone
	// boundary.
	HeapRightRedzoneMagic = byte(0xfb)
	// HeapFreeMagic poisons freed user bytes held in quarantine.
	HeapFreeMagic = byte(0xfd)
	// StackAfterReturnMagic poisons returned fake-stack frames.
	StackAfterReturnMagic = byte(0xf5)
)

// each shadow page covers 1<<19 application bytes.
const pageshift = 16
const pagesize = 1 << pageshift
const pagemask = pagesize - 1

type page [pagesize]byte

var (
	rw    sync.RWMutex
	pages = map[uintptr]*page{}
)

func granule(addr uintptr) uintptr {
	return addr / uintptr(Granularity)
}

func getpage(g uintptr, create bool) *page {
	key := g >> pageshift
	rw.RLock()
	pg := pages[key]
	rw.RUnlock()
	if pg != nil || !create {
		return pg
	}
	rw.Lock()
	if pg = pages[key]; pg == nil {
		pg = new(page)
		pages[key] = pg
	}
	rw.Unlock()
	return pg
}

// Poison fill the shadow bytes covering [mem, mem+size) with value.
// Both endpoints shall be aligned to Granularity. Value 0 unpoisons.
func Poison(mem uintptr, size int64, value byte) {
	if (mem%uintptr(Granularity)) != 0 || (size%Granularity) != 0 {
		fmsg := "shadow.Poison(%x, %v): not granularity aligned"
		panic(fmt.Errorf(fmsg, mem, size))
	}
	g, gend := granule(mem), granule(mem+uintptr(size))
	for g < gend {
		pg := getpage(g, true)
		n := uintptr(pagesize) - (g & pagemask)
		if rem := gend - g; rem < n {
			n = rem
		}
		off := g & pagemask
		for i := uintptr(0); i < n; i++ {
			pg[off+i] = value
		}
		g += n
	}
}

// PoisonPartialRightRedzone mark the redzone-wide span at `mem` so that
// the first `size` bytes are addressable and the remaining bytes are
// not. Granules fully inside `size` get shadow 0, the granule split by
// `size` gets the partial count, granules past it get `magic`. `mem`
// shall be aligned to `redzone` and `size` shall not exceed it.
func PoisonPartialRightRedzone(mem uintptr, size, redzone int64, magic byte) {
	if size > redzone {
		fmsg := "shadow.PoisonPartialRightRedzone(): size %v > redzone %v"
		panic(fmt.Errorf(fmsg, size, redzone))
	} else if (mem % uintptr(redzone)) != 0 {
		fmsg := "shadow.PoisonPartialRightRedzone(%x): not %v aligned"
		panic(fmt.Errorf(fmsg, mem, redzone))
	}
	for i := int64(0); i < redzone; i += Granularity {
		g := granule(mem + uintptr(i))
		pg := getpage(g, true)
		switch {
		case size >= i+Granularity:
			pg[g&pagemask] = 0
		case size > i:
			pg[g&pagemask] = byte(size - i)
		default:
			pg[g&pagemask] = magic
		}
	}
}

// Value return the shadow byte covering addr. Addresses the allocator
// never touched read as 0.
func Value(addr uintptr) byte {
	g := granule(addr)
	if pg := getpage(g, false); pg != nil {
		return pg[g&pagemask]
	}
	return 0
}

// Addressable report whether the single byte at addr is addressable
// according to its shadow.
func Addressable(addr uintptr) bool {
	sv := Value(addr)
	if sv == 0 {
		return true
	}
	if sv < byte(Granularity) {
		return (addr % uintptr(Granularity)) < uintptr(sv)
	}
	return false
}
