// Package memstat reads the process's own memory footprint off the OS,
// for cmd/pgalloc-bench to report alongside each workload's duration.
// Grounded on original_source/test.c's checkMemoryUsage, which scans
// /proc/self/status for VmRSS and VmSize.
package memstat

import "github.com/pkg/errors"

// ErrUnsupported is returned by Read on platforms without a
// /proc/self/status-style interface.
var ErrUnsupported = errors.New("memstat: not supported on this platform")

// Usage holds the two fields original_source/test.c's MemUsage tracks,
// in kilobytes as reported by the kernel.
type Usage struct {
	VirtualKB  int
	PhysicalKB int
}

// Delta returns u minus baseline, field by field.
func (u Usage) Delta(baseline Usage) Usage {
	return Usage{
		VirtualKB:  u.VirtualKB - baseline.VirtualKB,
		PhysicalKB: u.PhysicalKB - baseline.PhysicalKB,
	}
}
