// Package bitmem implements the bit-packed free-space index: a
// per-page bitmap tracking occupancy of 32-byte units, chained page to
// page, with no cross-buddy coalescing — any aligned free run of the
// right size is discoverable directly from the bitmap, which is the
// central simplification versus package buddy.
//
// Grounded on _examples/original_source/bitmem.c for the page
// descriptor layout (co-located bitmap + tagged next/prev) and on the
// teacher's (cznic/memory) page-chain-of-same-shape-blocks approach to
// amortising mmap calls. Where bitmem.c's bit-scan is ambiguous or
// demonstrably buggy (spec.md §9 Open Questions 1 and 4), this package
// follows the documented design — "128 blocks of 32 bytes", aligned
// runs only — rather than the source's expressions.
package bitmem

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/griffone/pgalloc/internal/blockhdr"
	"github.com/griffone/pgalloc/internal/dbg"
	"github.com/griffone/pgalloc/internal/page"
)

// unitShift is log2(32): the size in bytes of the smallest addressable
// unit a page's bitmap tracks.
const unitShift = 5

// unitsPerPage is the number of units in a page (4096 / 32 = 128).
const unitsPerPage = page.Size >> unitShift

// ErrOversized is returned for a level that can never be satisfied by
// any page: level blockhdr.MaxLevel would need all 128 units including
// unit 0, which the page descriptor itself permanently occupies.
var ErrOversized = errors.New("bitmem: level cannot be satisfied by any page (descriptor reserves unit 0)")

// pageHead is the 32-byte descriptor co-located at the start of every
// page: a 128-bit bitmap (bit i = 1 means unit i is free) followed by
// tagged next/prev links. Bit 0 covers the descriptor's own 32 bytes
// and is therefore always 0 (taken) on every page this package ever
// hands out.
type pageHead struct {
	bitmap [16]byte
	next   uintptr // top bits: next page address (0 if tail); low 12 bits: this page's free-unit count
	prev   uintptr // previous page address (0 if head); pages are already page-aligned so no tag is needed
}

func headAt(p unsafe.Pointer) *pageHead { return (*pageHead)(p) }

func freeUnits(p unsafe.Pointer) int {
	return int(headAt(p).next & uintptr(page.Mask))
}

func setFreeUnits(p unsafe.Pointer, n int) {
	h := headAt(p)
	h.next = (h.next &^ uintptr(page.Mask)) | uintptr(n)
}

func nextPage(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(headAt(p).next &^ uintptr(page.Mask))
}

func setNextPage(p, next unsafe.Pointer) {
	h := headAt(p)
	h.next = (uintptr(next) &^ uintptr(page.Mask)) | (h.next & uintptr(page.Mask))
}

func prevPage(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(headAt(p).prev)
}

func setPrevPage(p, prev unsafe.Pointer) {
	headAt(p).prev = uintptr(prev)
}

// bitsAllSet reports whether every unit in [offset, offset+count) is
// currently free (bit set to 1).
func bitsAllSet(bm *[16]byte, offset, count int) bool {
	for i := offset; i < offset+count; i++ {
		if bm[i>>3]&(1<<uint(i&7)) == 0 {
			return false
		}
	}
	return true
}

func clearBits(bm *[16]byte, offset, count int) {
	for i := offset; i < offset+count; i++ {
		bm[i>>3] &^= 1 << uint(i&7)
	}
}

func setBits(bm *[16]byte, offset, count int) {
	for i := offset; i < offset+count; i++ {
		bm[i>>3] |= 1 << uint(i&7)
	}
}

// newPage maps a fresh page and initializes its descriptor: unit 0
// (the descriptor itself) taken, all other 127 units free.
func newPage() (unsafe.Pointer, error) {
	p, err := page.New()
	if err != nil {
		return nil, err
	}
	base := p.Base()
	h := headAt(base)
	setBits(&h.bitmap, 1, unitsPerPage-1)
	h.next = uintptr(unitsPerPage - 1)
	h.prev = 0
	return base, nil
}

// Default constructs a ready-to-use bitmem Allocator. It exists for
// callers (cmd/pgalloc-bench) that prefer a constructor over relying
// on the zero value directly.
func Default() *Allocator { return &Allocator{} }

// Allocator is a bitmem free-space index: a doubly-linked chain of
// pages, each independently bitmap-managed. Its zero value is ready
// for use.
type Allocator struct {
	head, tail unsafe.Pointer
	pages      int
}

// pageTake scans page's bitmap for the first unit-aligned run of
// 1<<level free units. On success it marks the run taken, writes a
// block header recording level, and returns the block's address; on
// failure (no such run, or page doesn't have enough free units at
// all) it returns nil.
func pageTake(pageBase unsafe.Pointer, level uint8) unsafe.Pointer {
	want := 1 << level
	if freeUnits(pageBase) < want {
		return nil
	}

	h := headAt(pageBase)
	for offset := 0; offset+want <= unitsPerPage; offset += want {
		if !bitsAllSet(&h.bitmap, offset, want) {
			continue
		}
		clearBits(&h.bitmap, offset, want)
		setFreeUnits(pageBase, freeUnits(pageBase)-want)

		block := unsafe.Add(pageBase, offset<<unitShift)
		bh := blockhdr.At(block)
		bh.SetLevel(level)
		bh.SetTaken(true)
		return block
	}
	return nil
}

// find returns a free block of the given level, trying every mapped
// page in chain order before mapping a fresh one. See spec §4.4.
func (a *Allocator) find(level uint8) (unsafe.Pointer, error) {
	if level >= blockhdr.MaxLevel {
		dbg.Assert(false, "bitmem: level unsatisfiable by any page")
		return nil, ErrOversized
	}

	if a.head == nil {
		p, err := newPage()
		if err != nil {
			return nil, err
		}
		a.pages++
		a.head, a.tail = p, p
	}

	for cur := a.head; cur != nil; cur = nextPage(cur) {
		if block := pageTake(cur, level); block != nil {
			return block, nil
		}
	}

	fresh, err := newPage()
	if err != nil {
		return nil, err
	}
	a.pages++
	setNextPage(a.tail, fresh)
	setPrevPage(fresh, a.tail)
	a.tail = fresh

	block := pageTake(fresh, level)
	dbg.Assert(block != nil, "bitmem: fresh page could not satisfy its own level")
	return block, nil
}

// freeBlock recovers block's owning page, computes its unit range,
// marks those bits free again, and flags the block's header free. See
// spec §4.4.
func freeBlock(block unsafe.Pointer) {
	pageBase := page.BaseOf(block)
	bh := blockhdr.At(block)
	bh.SetTaken(false)
	level := bh.Level()
	offset := int(uintptr(block)-uintptr(pageBase)) >> unitShift
	want := 1 << level

	h := headAt(pageBase)
	setBits(&h.bitmap, offset, want)
	setFreeUnits(pageBase, freeUnits(pageBase)+want)
}

// Alloc returns a pointer to at least size writable bytes, or an
// error. A zero size returns (nil, nil).
func (a *Allocator) Alloc(size int) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}

	level := blockhdr.LevelFor(size)
	block, err := a.find(level)
	if err != nil {
		return nil, err
	}
	return blockhdr.Payload(block), nil
}

// Free releases a region previously returned by Alloc. A nil pointer
// is a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	block := blockhdr.HeaderOf(p)
	dbg.Assert(blockhdr.At(block).IsTaken(), "bitmem: double free or invalid pointer")
	freeBlock(block)
}

// Malloc is the []byte-returning convenience form of Alloc.
func (a *Allocator) Malloc(size int) ([]byte, error) {
	p, err := a.Alloc(size)
	if err != nil || p == nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), size), nil
}

// FreeBytes releases memory obtained from Malloc.
func (a *Allocator) FreeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	a.Free(unsafe.Pointer(&b[0]))
}

// Pages reports how many OS pages this allocator has ever mapped.
func (a *Allocator) Pages() int { return a.pages }

// dump reports, per mapped page, how many units remain free; used only
// by this package's own tests.
func (a *Allocator) dump() []int {
	var out []int
	for cur := a.head; cur != nil; cur = nextPage(cur) {
		out = append(out, freeUnits(cur))
	}
	return out
}
