//go:build linux

package memstat

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Read parses VmRSS and VmSize out of /proc/self/status.
func Read() (Usage, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return Usage{}, errors.Wrap(err, "memstat: open /proc/self/status")
	}
	defer f.Close()

	var u Usage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "VmRSS:":
			u.PhysicalKB, _ = strconv.Atoi(fields[1])
		case "VmSize:":
			u.VirtualKB, _ = strconv.Atoi(fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return Usage{}, errors.Wrap(err, "memstat: scan /proc/self/status")
	}
	return u, nil
}
