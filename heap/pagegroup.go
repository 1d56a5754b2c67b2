package heap

import "unsafe"

// pageGroup describes one contiguous mapping obtained from the OS,
// carved into chunks of one uniform size. The descriptor itself lives
// inside the mapping, in memory that is already poisoned. Page groups
// are append-only for the process lifetime, never merged or freed.
type pageGroup struct {
	begin     uintptr
	end       uintptr
	chunksize int64
}

func pagegroupat(addr uintptr) *pageGroup {
	return (*pageGroup)(unsafe.Pointer(addr))
}

func (pg *pageGroup) inRange(addr uintptr) bool {
	return addr >= pg.begin && addr < pg.end
}
