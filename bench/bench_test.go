package bench

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/griffone/pgalloc/bitmem"
	"github.com/griffone/pgalloc/buddy"
)

// Scenario S6, buddy engine: buddy can serve any request up to a whole
// page, so the full eleven-workload run must never see a nil pointer.
func TestScenarioS6BuddyNeverFails(t *testing.T) {
	pair := newBuddyPair()
	results, err := Run(pair.alloc, pair.free)
	require.NoError(t, err)
	require.Zero(t, results.Failures, "workload run must never see a failed allocation")
	require.Greater(t, results.Total(), time.Duration(0))
}

// The bitmem engine permanently reserves unit 0 of every page for its
// descriptor (spec §4.4), so its largest satisfiable single block is
// smaller than a full page's worth of payload. Workload #4 requests
// sizes up to 3188 bytes, some of which exceed that ceiling — those
// (and only those) legitimately come back nil. This is why buddy, not
// bitmem, backs the package-level default (see allocator.go); bitmem
// is still expected to run the harness to completion without error.
func TestScenarioS6BitmemBoundedFailures(t *testing.T) {
	pair := newBitmemPair()
	results, err := Run(pair.alloc, pair.free)
	require.NoError(t, err)
	// Workload #4 sizes 20+32*i exceed 2040 bytes (a level-7 request)
	// for i = 64..99: 36 allocations.
	require.Equal(t, 36, results.Failures, "only workload #4's whole-page requests may fail")
	require.Greater(t, results.Total(), time.Duration(0))
}

func newBuddyPair() struct {
	alloc AllocFunc
	free  FreeFunc
} {
	var a buddy.Allocator
	return struct {
		alloc AllocFunc
		free  FreeFunc
	}{
		alloc: func(size int) unsafe.Pointer { p, _ := a.Alloc(size); return p },
		free:  func(p unsafe.Pointer) { a.Free(p) },
	}
}

func newBitmemPair() struct {
	alloc AllocFunc
	free  FreeFunc
} {
	var a bitmem.Allocator
	return struct {
		alloc AllocFunc
		free  FreeFunc
	}{
		alloc: func(size int) unsafe.Pointer { p, _ := a.Alloc(size); return p },
		free:  func(p unsafe.Pointer) { a.Free(p) },
	}
}
