// Package page implements the allocator's page source: it obtains
// fresh, zero-initialized, page-aligned regions from the OS and never
// gives them back.
package page

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Size is the fixed size of every page this package hands out.
const Size = 4096

// Mask isolates the low bits that vary within a page; base := addr &^ Mask
// recovers the page-aligned address of the page containing addr.
const Mask = Size - 1

// ErrUnavailable is returned when the OS refuses to map a new page.
var ErrUnavailable = errors.New("page: OS declined to map a new page")

// Page is a single OS-mapped, zero-initialized, Size-byte region.
//
// A Page is never unmapped and never grown; it is retained for the
// lifetime of the process (see the allocator's non-goals).
type Page struct {
	raw []byte
}

// New requests a fresh page from the OS. The returned page is
// zero-filled and aligned to Size bytes, or an error wrapping
// ErrUnavailable is returned.
func New() (*Page, error) {
	raw, err := mmap(Size)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if uintptr(unsafe.Pointer(&raw[0]))&Mask != 0 {
		// mmap contract violation; the OS did not honor page alignment.
		panic("page: mapping not page-aligned")
	}
	return &Page{raw: raw}, nil
}

// Base returns the page-aligned start address of p.
func (p *Page) Base() unsafe.Pointer {
	return unsafe.Pointer(&p.raw[0])
}

// BaseOf recovers the page base address containing addr by masking off
// the low Size-alignment bits, converting through uintptr to perform raw
// address arithmetic (see spec's "raw address arithmetic" design note).
func BaseOf(addr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr) &^ uintptr(Mask))
}
