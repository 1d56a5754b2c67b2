// Package lib provide small self-contained helpers for the allocator:
// bit arithmetic on sizes and addresses, raw memory copy/fill outside
// the golang runtime, and anonymous OS mappings.
package lib
