package memstat

import "testing"

func TestDeltaSubtractsFieldwise(t *testing.T) {
	base := Usage{VirtualKB: 1000, PhysicalKB: 500}
	now := Usage{VirtualKB: 1200, PhysicalKB: 540}
	d := now.Delta(base)
	if d.VirtualKB != 200 || d.PhysicalKB != 40 {
		t.Fatalf("got %+v, want {200 40}", d)
	}
}

func TestReadReturnsUsableResultOrKnownError(t *testing.T) {
	u, err := Read()
	if err != nil {
		if err != ErrUnsupported {
			// wrapped errors on linux (e.g. sandboxed /proc) should still
			// be inspectable via errors.Is in callers; here we only
			// assert Read never panics and always returns a zero Usage
			// alongside a non-nil error.
			if u != (Usage{}) {
				t.Fatalf("error path returned non-zero usage: %+v", u)
			}
			return
		}
		if u != (Usage{}) {
			t.Fatalf("ErrUnsupported path returned non-zero usage: %+v", u)
		}
	}
}
