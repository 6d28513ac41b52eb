package proc

import (
	"fmt"
	"strings"
)

// IO holds the counters of /proc/<pid>/io, all in bytes or syscalls.
type IO struct {
	RChar               uint64 `json:"rchar"`
	WChar               uint64 `json:"wchar"`
	SyscR               uint64 `json:"syscr"`
	SyscW               uint64 `json:"syscw"`
	ReadBytes           uint64 `json:"read_bytes"`
	WriteBytes          uint64 `json:"write_bytes"`
	CancelledWriteBytes uint64 `json:"cancelled_write_bytes"`
}

var ioLabels = [...]string{
	"rchar",
	"wchar",
	"syscr",
	"syscw",
	"read_bytes",
	"write_bytes",
	"cancelled_write_bytes",
}

// ParseIO parses the contents of /proc/<pid>/io. The kernel writes the
// seven counters in a fixed order; each is located by its label.
func ParseIO(text string) (IO, error) {
	var (
		vals [len(ioLabels)]uint64
		c    = cursor{buf: terminated(text), name: "io"}
	)
	for i, want := range ioLabels {
		label := strings.TrimSpace(c.read(want, ':', labelLen))
		if c.err != nil {
			return IO{}, c.err
		}
		if label != want {
			return IO{}, fmt.Errorf("io %s: %w: got %q", want, ErrFieldNotFound, label)
		}
		// one separator after the colon
		c.pos++
		vals[i] = c.toUint64(want, strings.TrimSpace(c.read(want, '\n', bigintLen)))
		if c.err != nil {
			return IO{}, c.err
		}
	}
	return IO{
		RChar:               vals[0],
		WChar:               vals[1],
		SyscR:               vals[2],
		SyscW:               vals[3],
		ReadBytes:           vals[4],
		WriteBytes:          vals[5],
		CancelledWriteBytes: vals[6],
	}, nil
}
