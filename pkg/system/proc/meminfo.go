package proc

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/ja7ad/proctab/pkg/types"
)

// MemoryUsage summarises /proc/meminfo. All values are in kB as the kernel
// reports them.
type MemoryUsage struct {
	MemTotal   types.Kilobytes `json:"memtotal"`
	MemUsed    types.Kilobytes `json:"memused"`
	MemFree    types.Kilobytes `json:"memfree"`
	MemShared  types.Kilobytes `json:"memshared"`
	MemBuffers types.Kilobytes `json:"membuffers"`
	MemCached  types.Kilobytes `json:"memcached"`
	SwapTotal  types.Kilobytes `json:"swaptotal"`
	SwapUsed   types.Kilobytes `json:"swapused"`
	SwapFree   types.Kilobytes `json:"swapfree"`
	SwapCached types.Kilobytes `json:"swapcached"`
}

// ParseMemInfo scans /proc/meminfo. Lines may come in any order and unknown
// labels are ignored. MemShared only exists on old kernels and defaults to
// zero; MemTotal and MemFree are required. Used values are derived after the
// scan and never go below zero.
func ParseMemInfo(text string) (MemoryUsage, error) {
	var m MemoryUsage
	var hasTotal, hasFree bool

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		label, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		var dst *types.Kilobytes
		switch label {
		case "MemTotal":
			dst, hasTotal = &m.MemTotal, true
		case "MemFree":
			dst, hasFree = &m.MemFree, true
		case "MemShared":
			dst = &m.MemShared
		case "Buffers":
			dst = &m.MemBuffers
		case "Cached":
			dst = &m.MemCached
		case "SwapTotal":
			dst = &m.SwapTotal
		case "SwapFree":
			dst = &m.SwapFree
		case "SwapCached":
			dst = &m.SwapCached
		default:
			continue
		}
		fs := strings.Fields(rest)
		if len(fs) == 0 {
			return MemoryUsage{}, fmt.Errorf("meminfo %s: %w", label, ErrFieldNotFound)
		}
		if len(fs[0]) > bigintLen {
			fs[0] = fs[0][:bigintLen]
		}
		v, err := strconv.ParseUint(fs[0], 10, 64)
		if err != nil {
			return MemoryUsage{}, fmt.Errorf("meminfo %s: %w: %q", label, ErrFieldNotFound, fs[0])
		}
		*dst = types.Kilobytes(v)
	}
	if err := sc.Err(); err != nil {
		return MemoryUsage{}, fmt.Errorf("scan meminfo: %w", err)
	}
	if !hasTotal {
		return MemoryUsage{}, fmt.Errorf("meminfo MemTotal: %w", ErrFieldNotFound)
	}
	if !hasFree {
		return MemoryUsage{}, fmt.Errorf("meminfo MemFree: %w", ErrFieldNotFound)
	}

	m.MemUsed = m.MemTotal.Sub(m.MemFree)
	m.SwapUsed = m.SwapTotal.Sub(m.SwapFree)
	return m, nil
}
