// Package pgalloc implements a user-space general-purpose memory
// allocator that services variable-sized allocation requests by
// subdividing fixed-size OS-mapped pages into power-of-two blocks. It
// is a drop-in substitute for the platform's default allocator: two
// operations, Allocate and Free, sit between the application and the
// OS virtual-memory interface, requesting whole pages from the kernel
// and satisfying many smaller requests per page without further kernel
// round-trips.
//
// Two independent engines implement the shared Allocator contract:
// package buddy (a linked-list buddy system) and package bitmem (a
// bit-packed per-page bitmap). Both are usable directly; this package
// additionally exposes a package-level default pair, Allocate and Free,
// backed by the buddy engine (see New's doc comment for why buddy was
// chosen as the default).
//
// This allocator is single-threaded, never returns memory to the OS,
// never serves allocations larger than one page, and offers no
// alignment guarantee beyond the natural alignment of the containing
// block. See each engine's package doc for its internal strategy.
package pgalloc
