package proc

import (
	"fmt"
	"strings"
)

// CPUTime is the aggregate "cpu" line of /proc/stat, in clock ticks.
type CPUTime struct {
	User   uint64 `json:"user"`
	Nice   uint64 `json:"nice"`
	System uint64 `json:"system"`
	Idle   uint64 `json:"idle"`
	IOWait uint64 `json:"iowait"`
}

// ParseCPUTime parses the aggregate line of /proc/stat. iowait ends the
// line on kernels before 2.6 and is followed by irq and more on newer ones.
func ParseCPUTime(text string) (CPUTime, error) {
	text = terminated(text)
	var line string
	for l := range strings.Lines(text) {
		if strings.HasPrefix(l, "cpu ") {
			line = l
			break
		}
	}
	if line == "" {
		return CPUTime{}, fmt.Errorf("cputime cpu: %w", ErrFieldNotFound)
	}

	var (
		t CPUTime
		c = cursor{buf: line, name: "cputime"}
	)
	c.skip(1)
	t.User = c.toUint64("user", c.read("user", ' ', bigintLen))
	t.Nice = c.toUint64("nice", c.read("nice", ' ', bigintLen))
	t.System = c.toUint64("system", c.read("system", ' ', bigintLen))
	t.Idle = c.toUint64("idle", c.read("idle", ' ', bigintLen))
	t.IOWait = c.toUint64("iowait", c.readLine("iowait", bigintLen))
	if c.err != nil {
		return CPUTime{}, c.err
	}
	return t, nil
}

// Total is the sum of the five counters.
func (t CPUTime) Total() uint64 {
	return t.User + t.Nice + t.System + t.Idle + t.IOWait
}
