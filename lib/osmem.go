package lib

import "sync/atomic"

import "golang.org/x/sys/unix"

// OSPageSize assumed by the allocator for page-group layout. Mappings
// obtained from the OS are always multiples of this.
const OSPageSize = int64(4096)

var totalmmaped int64

// Mmap obtain an anonymous read/write mapping of `size` bytes from the
// OS. Size shall be a multiple of OSPageSize.
func Mmap(size int64) ([]byte, error) {
	if (size % OSPageSize) != 0 {
		panicerr("Mmap(%v): size not a multiple of %v", size, OSPageSize)
	}
	mem, err := unix.Mmap(
		-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&totalmmaped, size)
	return mem, nil
}

// Munmap return a mapping obtained via Mmap to the OS.
func Munmap(mem []byte) error {
	return unix.Munmap(mem)
}

// TotalMmaped running byte total of OS-backed mappings obtained by
// the allocator over the process lifetime.
func TotalMmaped() int64 {
	return atomic.LoadInt64(&totalmmaped)
}
