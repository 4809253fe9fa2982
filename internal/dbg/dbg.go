// Package dbg provides the single debug-assertion knob shared by both
// allocator engines, the direct descendant of the teacher's own `trace`
// constant and of bitmem.c's ALLOC_ASSERT/PAGE_IN_RANGE_ASSERT defines.
package dbg

// Enabled gates debug-mode invariant checks (oversized requests,
// double-free, a fresh bitmem page refusing its own level). Flip to true when chasing a
// allocator bug; release builds pay nothing for it.
const Enabled = false

// Assert panics with msg if cond is false and debug checks are enabled.
// It is a no-op in release builds, matching spec.md §7: release-build
// behavior for programmer errors is explicitly left unspecified.
func Assert(cond bool, msg string) {
	if Enabled && !cond {
		panic(msg)
	}
}
