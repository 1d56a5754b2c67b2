// Package sanheap supplies a poisoning heap allocator for address
// sanity checking, with a limited scope:
//
//   - Every allocation is surrounded by poisoned redzone bytes; the
//     chunk header and the compressed allocation stack live in the
//     left redzone.
//   - Every freed region is held in a quarantine fifo before it can
//     be recycled, so that stale pointers keep dereferencing memory
//     whose shadow is poisoned.
//   - A shadow map records per-granule addressability of every
//     address the allocator manages; instrumented programs consult
//     it on loads and stores.
//   - Memory is obtained from the OS in page groups and never given
//     back; the page-group index supports reverse lookup from an
//     arbitrary address, tolerating interior and off-by-one pointers.
//   - A fake-stack allocator redirects instrumented stack frames into
//     heap-like slots so that return-to-freed-frame bugs become
//     detectable.
//
// The package-level entry points operate on a process-global heap
// wired up by Init. Applications needing several heaps, custom trace
// codecs or custom reporting use heap.NewHeap directly.
package sanheap
