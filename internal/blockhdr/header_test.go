package blockhdr

import (
	"testing"
	"unsafe"
)

func TestSizeOfLevels(t *testing.T) {
	want := []int{32, 64, 128, 256, 512, 1024, 2048, 4096}
	for level, w := range want {
		if g := SizeOf(uint8(level)); g != w {
			t.Errorf("SizeOf(%d) = %d, want %d", level, g, w)
		}
	}
}

func TestLevelForAccountsForHeader(t *testing.T) {
	cases := []struct {
		n    int
		want uint8
	}{
		{0, 0},
		{1, 0},
		{32 - Size, 0},
		{32 - Size + 1, 1},
		{48, 1},  // 48+8=56 <= 64
		{1000, 5}, // 1000+8=1008 <= 1024
	}
	for _, c := range cases {
		if g := LevelFor(c.n); g != c.want {
			t.Errorf("LevelFor(%d) = %d, want %d", c.n, g, c.want)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	var buf [Size + 64]byte
	addr := unsafe.Pointer(&buf[0])

	h := At(addr)
	h.SetLevel(3)
	h.SetTaken(true)

	if At(addr).Level() != 3 || !At(addr).IsTaken() {
		t.Fatalf("header did not round-trip: level=%d taken=%v", At(addr).Level(), At(addr).IsTaken())
	}

	p := Payload(addr)
	if HeaderOf(p) != addr {
		t.Fatalf("HeaderOf(Payload(addr)) != addr")
	}
}
