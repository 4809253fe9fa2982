// Package buddy implements the linked-list buddy free-space index: an
// array of doubly-linked free-lists, one per level, of free blocks
// across all pages currently mapped. This is one of the allocator's two
// interchangeable engines; see package bitmem for the other.
//
// Grounded on _examples/original_source/buddy.c (find/insert/split/merge)
// and on the teacher's (cznic/memory) shared-state Allocator whose zero
// value is ready for use and whose free blocks carry their own
// prev/next linkage inside their payload.
package buddy

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/griffone/pgalloc/internal/blockhdr"
	"github.com/griffone/pgalloc/internal/dbg"
	"github.com/griffone/pgalloc/internal/page"
)

// ErrOversized is returned when a request cannot fit in a single page.
var ErrOversized = errors.New("buddy: request exceeds one page")

// node is the intrusive free-list linkage. It lives inside a free
// block's own payload; once a block is taken its bytes belong to the
// application and this layout is never consulted again (spec §9,
// "Intrusive free-lists").
type node struct {
	prev, next unsafe.Pointer
}

// Default constructs a ready-to-use buddy Allocator. It exists for
// symmetry with bitmem.Default and callers that prefer a constructor
// over relying on the zero value directly (cmd/pgalloc-bench does).
func Default() *Allocator { return &Allocator{} }

// Allocator is a buddy free-space index. Its zero value is ready for
// use: every free-list starts empty and the first allocation of any
// level simply falls through to requesting a fresh page.
type Allocator struct {
	freeLists [blockhdr.MaxLevel + 1]unsafe.Pointer
	pages     int // pages ever mapped; used only by tests/diagnostics
}

func nodeAt(payload unsafe.Pointer) *node { return (*node)(payload) }

func buddyOf(block unsafe.Pointer, level uint8) unsafe.Pointer {
	return unsafe.Pointer(uintptr(block) ^ (1 << (uint(level) + blockhdr.MinLevelShift)))
}

// detach removes block, known to be the free-list head or a member of
// freeLists[level], from that list and clears its linkage.
func (a *Allocator) detach(level uint8, block unsafe.Pointer) {
	n := nodeAt(blockhdr.Payload(block))
	if n.prev != nil {
		nodeAt(blockhdr.Payload(n.prev)).next = n.next
	} else {
		a.freeLists[level] = n.next
	}
	if n.next != nil {
		nodeAt(blockhdr.Payload(n.next)).prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// push adds block to the head of freeLists[level].
func (a *Allocator) push(level uint8, block unsafe.Pointer) {
	n := nodeAt(blockhdr.Payload(block))
	n.prev = nil
	n.next = a.freeLists[level]
	if n.next != nil {
		nodeAt(blockhdr.Payload(n.next)).prev = block
	}
	a.freeLists[level] = block
}

// find returns a free block of the given level, splitting a larger free
// block or mapping a fresh page as needed. See spec §4.3.
func (a *Allocator) find(level uint8) (unsafe.Pointer, error) {
	if a.freeLists[level] != nil {
		block := a.freeLists[level]
		a.detach(level, block)
		return block, nil
	}

	if level == blockhdr.MaxLevel {
		p, err := page.New()
		if err != nil {
			return nil, err
		}
		a.pages++
		base := p.Base()
		h := blockhdr.At(base)
		h.SetLevel(blockhdr.MaxLevel)
		h.SetTaken(false)
		return base, nil
	}

	parent, err := a.find(level + 1)
	if err != nil {
		return nil, err
	}

	// parent arrives already detached from any list (find never hands
	// out a block that is still linked): detach has cleared its
	// prev/next, and a fresh page is zero-filled. Clearing them again
	// here makes explicit that the primary half handed out carries no
	// linkage (spec's open question 3).
	pn := nodeAt(blockhdr.Payload(parent))
	pn.prev, pn.next = nil, nil

	primary := parent
	blockhdr.At(primary).SetLevel(level)
	secondary := buddyOf(primary, level)
	blockhdr.At(secondary).SetLevel(level)
	blockhdr.At(secondary).SetTaken(false)

	a.push(level, secondary)
	return primary, nil
}

// insert releases block back into the index, merging with its buddy
// whenever possible. See spec §4.3.
func (a *Allocator) insert(block unsafe.Pointer, level uint8) {
	if level != blockhdr.MaxLevel {
		bud := buddyOf(block, level)
		budHdr := blockhdr.At(bud)
		if !budHdr.IsTaken() && budHdr.Level() == level {
			a.detach(level, bud)
			combined := block
			if uintptr(bud) < uintptr(block) {
				combined = bud
			}
			blockhdr.At(combined).SetLevel(level + 1)
			a.insert(combined, level+1)
			return
		}
	}

	h := blockhdr.At(block)
	h.SetTaken(false)
	h.SetLevel(level)
	a.push(level, block)
}

// Alloc returns a pointer to at least size writable bytes, or an error.
// A zero size returns (nil, nil): a null allocation, not a failure.
func (a *Allocator) Alloc(size int) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}

	level := blockhdr.LevelFor(size)
	if level > blockhdr.MaxLevel {
		dbg.Assert(false, "buddy: oversized allocation request")
		return nil, errors.Wrapf(ErrOversized, "requested %d bytes", size)
	}

	block, err := a.find(level)
	if err != nil {
		return nil, err
	}

	h := blockhdr.At(block)
	h.SetTaken(true)
	h.SetLevel(level)
	return blockhdr.Payload(block), nil
}

// Free releases a region previously returned by Alloc. A nil pointer is
// a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	block := blockhdr.HeaderOf(p)
	h := blockhdr.At(block)
	dbg.Assert(h.IsTaken(), "buddy: double free or invalid pointer")
	a.insert(block, h.Level())
}

// Malloc is the []byte-returning convenience form of Alloc, in the
// teacher's idiom (cznic/memory.Allocator.Malloc wraps UnsafeMalloc the
// same way).
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

// dump renders the free-lists for debugging; never called on any
// success path (spec.md non-goal: no output in the success path).
func (a *Allocator) dump() []int {
	counts := make([]int, blockhdr.MaxLevel+1)
	for level := 0; level <= blockhdr.MaxLevel; level++ {
		for b := a.freeLists[level]; b != nil; {
			counts[level]++
			b = nodeAt(blockhdr.Payload(b)).next
		}
	}
	return counts
}
