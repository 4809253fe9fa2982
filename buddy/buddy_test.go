package buddy

import (
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"

	"github.com/griffone/pgalloc/internal/blockhdr"
)

// S1: two same-size allocations land at least one block-size apart.
func TestScenarioS1TwoSmallAllocationsDoNotOverlap(t *testing.T) {
	var a Allocator
	p, err := a.Alloc(48)
	require.NoError(t, err)
	require.NotNil(t, p)

	q, err := a.Alloc(48)
	require.NoError(t, err)
	require.NotNil(t, q)

	require.GreaterOrEqual(t, diff(p, q), uintptr(64))
}

// S2: the first two allocations out of a fresh page land at a fixed,
// deterministic offset. The header here is 8 bytes (spec §9 moves the
// free-list linkage out of the header into the free block's own
// payload), so the offset differs from the 0x180 the original C
// program observes with its larger, linkage-carrying header; see
// DESIGN.md for the Open Question this resolves.
func TestScenarioS2FixedOffsetOnFreshPage(t *testing.T) {
	var a Allocator
	p, err := a.Alloc(12 * 4)
	require.NoError(t, err)
	q, err := a.Alloc(128)
	require.NoError(t, err)

	require.Equal(t, blockhdr.PageSize, 4096)
	require.Equal(t, uintptr(0x100), diff(p, q))

	pPage := uintptr(p) &^ uintptr(blockhdr.PageSize-1)
	qPage := uintptr(q) &^ uintptr(blockhdr.PageSize-1)
	require.Equal(t, pPage, qPage, "both allocations must land on the same page")
}

// S3: a 1000-byte request lands in a level-5 (1024-byte) block and
// round-trips written bytes.
func TestScenarioS3LargeAllocationRoundTripsBytes(t *testing.T) {
	var a Allocator
	p, err := a.Alloc(1000)
	require.NoError(t, err)
	require.NotNil(t, p)

	block := blockhdr.HeaderOf(p)
	require.EqualValues(t, 5, blockhdr.At(block).Level())

	buf := unsafe.Slice((*byte)(p), 1000)
	buf[0] = 0xAB
	buf[999] = 0xAB
	require.Equal(t, byte(0xAB), buf[0])
	require.Equal(t, byte(0xAB), buf[999])
}

// S4: after freeing 128 small allocations, the reconstituted free space
// (whether by merge or by falling through to pages) can satisfy a
// near-page-sized request.
func TestScenarioS4FreeThenLargeAllocationSucceeds(t *testing.T) {
	var a Allocator
	ptrs := make([]unsafe.Pointer, 128)
	for i := range ptrs {
		p, err := a.Alloc(8)
		require.NoError(t, err)
		ptrs[i] = p
	}
	for _, p := range ptrs {
		a.Free(p)
	}

	p, err := a.Alloc(4000)
	require.NoError(t, err)
	require.NotNil(t, p)
}

// S5: zero-length allocation and nil free are both harmless no-ops.
func TestScenarioS5ZeroAndNil(t *testing.T) {
	var a Allocator
	p, err := a.Alloc(0)
	require.NoError(t, err)
	require.Nil(t, p)

	require.NotPanics(t, func() { a.Free(nil) })
}

// Property 6 (round-trip): once every outstanding allocation on a page
// is freed, the buddy index contains exactly one level-MaxLevel free
// block for that page.
func TestRoundTripReconstitutesWholePage(t *testing.T) {
	var a Allocator
	var ptrs []unsafe.Pointer
	for i := 0; i < 200; i++ {
		p, err := a.Alloc(16)
		require.NoError(t, err)
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		a.Free(p)
	}

	counts := a.dump()
	total := 0
	for level, c := range counts {
		total += c
		if level != blockhdr.MaxLevel && c != 0 {
			t.Fatalf("level %d free-list should be empty after full merge, has %d entries", level, c)
		}
	}
	require.Equal(t, a.Pages(), counts[blockhdr.MaxLevel])
	require.Equal(t, a.Pages(), total)
}

// Property 1 + 5 (disjointness, write persistence) and property 7
// (no unbounded growth), driven the way the teacher's own all_test.go
// drives its fuzz-style tests: a seeded mathutil.FC32 sequence of sizes
// and byte fills, verified after the fact.
func TestFuzzAllocateVerifyFree(t *testing.T) {
	const quota = 4 << 20
	var a Allocator
	rem := quota
	var bufs [][]byte

	rng, err := mathutil.NewFC32(1, 900, true)
	require.NoError(t, err)
	rng.Seed(7)
	pos := rng.Pos()

	for rem > 0 {
		size := rng.Next()
		rem -= size
		b, err := a.Malloc(size)
		require.NoError(t, err)
		bufs = append(bufs, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for _, b := range bufs {
		wantLen := rng.Next()
		require.Equal(t, wantLen, len(b))
		for i := range b {
			require.Equal(t, byte(rng.Next()), b[i])
		}
	}

	pagesBefore := a.Pages()
	for _, b := range bufs {
		a.FreeBytes(b)
	}
	require.Equal(t, pagesBefore, a.Pages(), "freeing never maps new pages")

	counts := a.dump()
	for level := 0; level < blockhdr.MaxLevel; level++ {
		require.Zerof(t, counts[level], "level %d should be fully merged away", level)
	}
}

func TestAllocRejectsOversizedRequests(t *testing.T) {
	var a Allocator
	_, err := a.Alloc(blockhdr.PageSize)
	require.Error(t, err)
}

func diff(a, b unsafe.Pointer) uintptr {
	ua, ub := uintptr(a), uintptr(b)
	if ua > ub {
		return ua - ub
	}
	return ub - ua
}
