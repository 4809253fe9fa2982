// Command pgalloc-bench drives bench.Run against three allocate/free
// pairs - Go's own allocator as a baseline, and the buddy and bitmem
// engines - and prints a table of per-workload durations followed by the
// change in the process's memory footprint over the whole run.
//
// Grounded on original_source/test.c's main: it runs the same
// benchmark three times over and prints a three-column comparison.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/griffone/pgalloc/bench"
	"github.com/griffone/pgalloc/bitmem"
	"github.com/griffone/pgalloc/buddy"
	"github.com/griffone/pgalloc/internal/memstat"
)

var workloadNames = [bench.WorkloadCount]string{
	"tiny allocations",
	"zig-zag",
	"freeing some items",
	"large blocks",
	"increasingly large blocks",
	"sweeping clean",
	"clamped blocks",
	"random allocations",
	"even frees",
	"flipping",
	"complete cleanup",
}

// goallocPair stands in for the C benchmark's "default memory
// management": plain Go heap allocations, kept alive in a map so the
// garbage collector cannot reclaim one before bench explicitly frees
// it. The map key is the pointer value itself.
func goallocPair() (bench.AllocFunc, bench.FreeFunc) {
	live := make(map[unsafe.Pointer][]byte)
	alloc := func(size int) unsafe.Pointer {
		if size == 0 {
			return nil
		}
		b := make([]byte, size)
		p := unsafe.Pointer(&b[0])
		live[p] = b
		return p
	}
	free := func(p unsafe.Pointer) {
		delete(live, p)
	}
	return alloc, free
}

// engine is the structural subset of buddy.Allocator and
// bitmem.Allocator that bench.Run needs; both satisfy it without
// either package importing the other.
type engine interface {
	Alloc(size int) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

func enginePairFor(a engine) (bench.AllocFunc, bench.FreeFunc) {
	return func(size int) unsafe.Pointer {
			p, err := a.Alloc(size)
			if err != nil {
				return nil
			}
			return p
		}, func(p unsafe.Pointer) {
			a.Free(p)
		}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pgalloc-bench:", err)
		os.Exit(1)
	}
}

func run() error {
	baseline, err := memstat.Read()
	if err != nil && !errors.Is(err, memstat.ErrUnsupported) {
		fmt.Fprintln(os.Stderr, "pgalloc-bench: baseline memory usage unavailable:", err)
	}

	goAlloc, goFree := goallocPair()
	goResults, err := bench.Run(goAlloc, goFree)
	if err != nil {
		return errors.Wrap(err, "running goalloc benchmark")
	}

	buddyAlloc, buddyFree := enginePairFor(buddy.Default())
	buddyResults, err := bench.Run(buddyAlloc, buddyFree)
	if err != nil {
		return errors.Wrap(err, "running buddy benchmark")
	}

	bitmemAlloc, bitmemFree := enginePairFor(bitmem.Default())
	bitmemResults, err := bench.Run(bitmemAlloc, bitmemFree)
	if err != nil {
		return errors.Wrap(err, "running bitmem benchmark")
	}

	final, err := memstat.Read()
	if err != nil && !errors.Is(err, memstat.ErrUnsupported) {
		fmt.Fprintln(os.Stderr, "pgalloc-bench: final memory usage unavailable:", err)
	}
	delta := final.Delta(baseline)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "workload\tgoalloc\tbuddy\tbitmem")
	for i, name := range workloadNames {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name,
			goResults.Durations[i],
			buddyResults.Durations[i],
			bitmemResults.Durations[i],
		)
	}
	fmt.Fprintf(w, "total\t%s\t%s\t%s\n",
		goResults.Total(), buddyResults.Total(), bitmemResults.Total())
	fmt.Fprintf(w, "failures\t%d\t%d\t%d\n",
		goResults.Failures, buddyResults.Failures, bitmemResults.Failures)
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flushing report")
	}

	fmt.Printf("memory delta since start: virtual=%dKB physical=%dKB\n",
		delta.VirtualKB, delta.PhysicalKB)
	return nil
}
