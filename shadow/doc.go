// Package shadow maintains the process-global shadow map: one byte of
// sanitizer-owned metadata for every aligned group of 8 application
// bytes. A shadow byte of 0 means the whole granule is addressable, a
// value k in 1..7 means only the first k bytes are addressable, and a
// magic value from the poison palette means none of the granule is.
//
// The allocator never touches the shadow except through Poison and
// PoisonPartialRightRedzone. Shadow pages materialize on demand,
// indexed by the high bits of the application address; this directory
// stands in for the fixed address-to-shadow mapping that a fused
// runtime would compute at compile time.
package shadow
