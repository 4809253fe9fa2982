package page

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestNewIsZeroedAndAligned(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	base := uintptr(p.Base())
	require.Zero(t, base&Mask, "page base must be %d-byte aligned", Size)

	buf := unsafe.Slice((*byte)(p.Base()), Size)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d of fresh page is %#x, want 0", i, b)
		}
	}
}

func TestBaseOfRecoversPageStart(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	base := p.Base()
	interior := unsafe.Add(base, 123)
	require.Equal(t, base, BaseOf(interior))
	require.Equal(t, base, BaseOf(base))
}

func TestDistinctPagesDoNotOverlap(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	require.NotEqual(t, a.Base(), b.Base())
}
