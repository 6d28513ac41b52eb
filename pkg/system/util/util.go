package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ja7ad/proctab/pkg/types"
)

// ErrBadPID is returned by ParsePIDs for arguments that are neither a pid
// nor a pid range.
var ErrBadPID = errors.New("util: invalid pid")

// maxRange caps how many pids one "A..B" argument may expand to.
const maxRange = 1 << 16

// ParsePIDs expands CLI arguments of the form "123" or "100..110" into a
// pid list. Order is preserved and repeated pids are kept once.
func ParsePIDs(args []string) ([]int, error) {
	var (
		out  []int
		seen = map[int]struct{}{}
	)
	add := func(pid int) {
		if _, ok := seen[pid]; ok {
			return
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}

	for _, arg := range args {
		for _, a := range strings.Fields(arg) {
			lo, hi, isRange := strings.Cut(a, "..")
			first, err := parsePID(lo)
			if err != nil {
				return nil, err
			}
			if !isRange {
				add(first)
				continue
			}
			last, err := parsePID(hi)
			if err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("%w: range %q is descending", ErrBadPID, a)
			}
			if last-first >= maxRange {
				return nil, fmt.Errorf("%w: range %q is longer than %d", ErrBadPID, a, maxRange)
			}
			for pid := first; pid <= last; pid++ {
				add(pid)
			}
		}
	}
	return out, nil
}

func parsePID(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPID, s)
	}
	return v, nil
}

// SystemSummary describes the host for report headers. Fields that cannot
// be determined are reported as "unknown".
func SystemSummary() (hostname, kernel, cpus, memory string) {
	hostname, kernel, cpus, memory = "unknown", "unknown", "unknown", "unknown"
	if hi, err := host.Info(); err == nil {
		hostname = hi.Hostname
		kernel = strings.TrimSpace(hi.KernelVersion + " " + hi.KernelArch)
	}
	if n, err := cpu.Counts(true); err == nil {
		cpus = strconv.Itoa(n)
		if info, err := cpu.Info(); err == nil && len(info) > 0 {
			cpus += " x " + info[0].ModelName
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memory = types.Bytes(vm.Total).Humanized()
	}
	return hostname, kernel, cpus, memory
}

// FmtFloat formats f in the shortest form that parses back to f.
func FmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
