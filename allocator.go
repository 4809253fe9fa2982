package pgalloc

import (
	"unsafe"

	"github.com/griffone/pgalloc/bitmem"
	"github.com/griffone/pgalloc/buddy"
)

// Allocator is the contract shared by both engines: obtain a writable
// region of at least size bytes, or release one previously obtained.
// *buddy.Allocator and *bitmem.Allocator both satisfy it.
type Allocator interface {
	// Alloc returns a pointer to at least size writable bytes, or an
	// error. A zero size returns (nil, nil).
	Alloc(size int) (unsafe.Pointer, error)

	// Free releases a region previously returned by Alloc. A nil
	// pointer is a no-op.
	Free(p unsafe.Pointer)

	// Malloc is the []byte-returning convenience form of Alloc.
	Malloc(size int) ([]byte, error)

	// FreeBytes releases memory obtained from Malloc.
	FreeBytes(b []byte)

	// Pages reports how many OS pages this allocator has ever mapped.
	Pages() int
}

// Strategy selects which free-space index backs a New allocator.
type Strategy int

const (
	// BuddyStrategy is the linked-list buddy free-space index
	// (package buddy): it coalesces free blocks back into larger ones
	// on every Free, trading a little work on the free path for better
	// space reuse under a mixed allocation-size workload.
	BuddyStrategy Strategy = iota

	// BitmemStrategy is the bit-packed per-page bitmap free-space
	// index (package bitmem): no coalescing, but any aligned free run
	// is discoverable directly from the bitmap at allocation time.
	BitmemStrategy
)

// New constructs a fresh Allocator backed by the requested Strategy.
// buddy is the default (see Allocate/Free) because it reconstitutes
// large free blocks via merging, which serves the mixed,
// allocate-then-free-then-reallocate-larger workloads the bench
// harness exercises (spec's Open Question on which engine should back
// the package-level default; resolved here, recorded in DESIGN.md).
func New(s Strategy) Allocator {
	switch s {
	case BitmemStrategy:
		return &bitmem.Allocator{}
	default:
		return &buddy.Allocator{}
	}
}

// def is the package-level default allocator backing Allocate/Free.
// Like both engines' zero values, it is ready for use without explicit
// initialization.
var def = &buddy.Allocator{}

// Allocate returns a pointer to at least size writable bytes, aligned
// to the natural alignment of the containing block (at least 32
// bytes), or nil on failure or a zero-length request. It is the
// drop-in, process-wide allocate operation described in spec.md §6.
func Allocate(size int) unsafe.Pointer {
	p, err := def.Alloc(size)
	if err != nil {
		return nil
	}
	return p
}

// Free releases a region previously returned by Allocate. Passing nil
// is a no-op; passing anything else not obtained from Allocate is
// undefined, per spec.md §6.
func Free(p unsafe.Pointer) {
	def.Free(p)
}
