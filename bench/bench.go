// Package bench is the benchmark harness collaborator described at
// spec.md §6: it drives any allocate/free pair through eleven fixed
// workloads and reports elapsed time per workload. It is an external
// collaborator to the allocator core — it never reaches into either
// engine's internals, only through the shared pointer-based contract.
//
// Grounded on _examples/original_source/test.c's benchmark function;
// the eleven workloads below are a direct translation of its eleven
// timed loops.
package bench

import (
	"time"
	"unsafe"

	"github.com/pkg/errors"
)

// AllocFunc is the allocate half of the pair under test.
type AllocFunc func(size int) unsafe.Pointer

// FreeFunc is the free half of the pair under test.
type FreeFunc func(p unsafe.Pointer)

// WorkloadCount is the number of fixed workloads Run drives.
const WorkloadCount = 11

// slotCount mirrors the 512-entry pointer table original_source/test.c
// drives its later workloads against.
const slotCount = 512

// Results records one Duration per workload and the total count of
// Alloc calls that returned a nil pointer (spec.md's scenario S6
// requires this to be zero across a full run).
type Results struct {
	Durations [WorkloadCount]time.Duration
	Failures  int
}

// Total sums the per-workload durations.
func (r Results) Total() time.Duration {
	var sum time.Duration
	for _, d := range r.Durations {
		sum += d
	}
	return sum
}

// ErrSlotInUse is returned if a workload tries to allocate into a slot
// that is already holding a live allocation — a bug in the harness
// itself, never in the allocator under test.
var ErrSlotInUse = errors.New("bench: workload attempted to allocate into an already-open slot")

type slot struct {
	open bool
	p    unsafe.Pointer
}

// Run drives the eleven workloads of spec.md §6 against alloc/free and
// returns the timing/failure Results, or an error if the harness logic
// itself is violated (see ErrSlotInUse).
func Run(alloc AllocFunc, free FreeFunc) (Results, error) {
	var r Results
	slots := make([]slot, slotCount)
	for i := range slots {
		slots[i].open = true
	}

	assign := func(i, size int) error {
		if !slots[i].open {
			return errors.Wrapf(ErrSlotInUse, "slot %d", i)
		}
		p := alloc(size)
		if p == nil {
			r.Failures++
			return nil
		}
		// Defensive write/read: every block's usable payload is at
		// least blockhdr.Size bytes even at level 0, so stamping the
		// pointer's own value into its first 8 bytes is always safe
		// and lets later workloads detect cross-allocation corruption.
		*(*uintptr)(p) = uintptr(p)
		slots[i].p = p
		slots[i].open = false
		return nil
	}

	clear := func(i int) {
		if slots[i].open {
			return
		}
		if got := *(*uintptr)(slots[i].p); got != uintptr(slots[i].p) {
			panic("bench: corrupted block detected on free")
		}
		free(slots[i].p)
		slots[i].open = true
	}

	timed := func(idx int, fn func() error) error {
		start := time.Now()
		err := fn()
		r.Durations[idx] = time.Since(start)
		return err
	}

	// #0: 50 tiny allocations cycling through {8, 16, 64}.
	if err := timed(0, func() error {
		sizes := [3]int{8, 16, 64}
		for i := 0; i < 50; i++ {
			if err := assign(i, sizes[i%3]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #1: 50 zig-zag allocations alternating 100, 10 bytes.
	if err := timed(1, func() error {
		for i := 50; i < 100; i++ {
			size := 10
			if i%2 == 0 {
				size = 100
			}
			if err := assign(i, size); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #2: free every 7th pointer from indices 3..99.
	timed(2, func() error {
		for i := 3; i < 100; i += 7 {
			clear(i)
		}
		return nil
	})

	// #3: allocate 1000-byte blocks into the freed slots of #2.
	if err := timed(3, func() error {
		for i := 3; i < 100; i += 7 {
			if err := assign(i, 1000); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #4: 100 allocations of size 20 + 32*i.
	if err := timed(4, func() error {
		for i := 0; i < 100; i++ {
			if err := assign(100+i, 20+32*i); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #5: free indices 20..79.
	timed(5, func() error {
		for i := 20; i < 80; i++ {
			clear(i)
		}
		return nil
	})

	// #6: reallocate indices 20..79 with clamped sizes 8 + (13*j mod 64).
	if err := timed(6, func() error {
		for i := 20; i < 80; i++ {
			j := i - 20
			if err := assign(i, 8+(13*j)%64); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #7: 312 mixed allocations driven by i mod 8.
	if err := timed(7, func() error {
		for i := 200; i < 512; i++ {
			j := i - 200
			var size int
			switch i % 8 {
			case 0:
				size = 5 + (31*j)%117
			case 1, 2, 3, 4:
				size = 64
			case 5, 6:
				size = i
			case 7:
				size = 2000
			}
			if err := assign(i, size); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #8: free every even index in 0..511.
	timed(8, func() error {
		for i := 0; i < 512; i += 2 {
			clear(i)
		}
		return nil
	})

	// #9: for i in 0..511: allocate if even, free if odd.
	if err := timed(9, func() error {
		for i := 0; i < 512; i++ {
			if i%2 == 0 {
				if err := assign(i, 12+i); err != nil {
					return err
				}
			} else {
				clear(i)
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	// #10: free every still-taken even index (final cleanup).
	timed(10, func() error {
		for i := 0; i < 512; i += 2 {
			clear(i)
		}
		return nil
	})

	return r, nil
}
