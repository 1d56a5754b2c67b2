// Package heap implements a poisoning heap allocator. Every chunk of
// memory handed out carries a left redzone of `redzone` bytes holding
// the chunk header and the compressed allocation stack, and a right
// redzone such that the end of the chunk is aligned by `redzone`. The
// left redzone is always poisoned, the right redzone is poisoned on
// malloc and the body is poisoned on free. Freed chunks move to a
// quarantine fifo and return to the free lists only after the
// quarantine byte budget forces them out, so that stale pointers keep
// dereferencing poisoned shadow for as long as possible.
//
// Memory is obtained from the OS in page groups, contiguous mappings
// carved into chunks of one size class. Page groups are never returned
// to the OS; the page-group index supports reverse lookup from an
// arbitrary address to the owning chunk, tolerating interior and
// off-by-one pointers.
package heap
