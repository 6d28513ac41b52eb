package proc

import (
	"time"

	"github.com/ja7ad/proctab/pkg/types"
)

// ProcessSnapshot is one row: a process's stat and io counters plus its
// command line and owner, all read during a single Collect.
type ProcessSnapshot struct {
	Stat
	IO

	CmdLine     string `json:"cmdline,omitempty"`
	HasCmdLine  bool   `json:"-"`
	UID         int64  `json:"uid"`
	Username    string `json:"username,omitempty"`
	HasUsername bool   `json:"-"`
}

// RSSBytes converts the resident page count to bytes.
func (p ProcessSnapshot) RSSBytes(pageSize int) types.Bytes {
	return types.ToBytes(p.RSS, pageSize)
}

// CPUSeconds is utime+stime expressed in seconds.
func (p ProcessSnapshot) CPUSeconds(clkTck int) float64 {
	if clkTck <= 0 {
		return 0
	}
	return float64(p.UTime+p.STime) / float64(clkTck)
}

// Result is the outcome for one requested pid.
type Result struct {
	PID     int
	Process ProcessSnapshot
	Err     error
}

// OK reports whether the row was read.
func (r Result) OK() bool { return r.Err == nil }

// Snapshot is one sampling cycle: the three system aggregates and every
// process row that could be read.
type Snapshot struct {
	Taken     time.Time         `json:"taken"`
	Load      SystemLoad        `json:"loadavg"`
	Memory    MemoryUsage       `json:"memusage"`
	CPU       CPUTime           `json:"cputime"`
	Processes []ProcessSnapshot `json:"processes"`
}
