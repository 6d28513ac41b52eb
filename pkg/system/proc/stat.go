package proc

import (
	"fmt"
	"strconv"
	"strings"
)

// Stat holds the fields of /proc/<pid>/stat that a snapshot carries, in
// kernel order. Signed fields keep the sign proc(5) gives them: tpgid is -1
// without a controlling terminal and nice is negative for boosted tasks.
type Stat struct {
	PID                 int    `json:"pid"`
	Comm                string `json:"comm"`
	State               string `json:"state"`
	PPID                int    `json:"ppid"`
	PGRP                int    `json:"pgrp"`
	Session             int    `json:"session"`
	TTY                 int    `json:"tty_nr"`
	TPGID               int    `json:"tpgid"`
	Flags               uint32 `json:"flags"`
	MinFlt              uint64 `json:"minflt"`
	CMinFlt             uint64 `json:"cminflt"`
	MajFlt              uint64 `json:"majflt"`
	CMajFlt             uint64 `json:"cmajflt"`
	UTime               uint64 `json:"utime"`
	STime               uint64 `json:"stime"`
	CUTime              int64  `json:"cutime"`
	CSTime              int64  `json:"cstime"`
	Priority            int64  `json:"priority"`
	Nice                int64  `json:"nice"`
	NumThreads          int64  `json:"num_threads"`
	ITRealValue         int64  `json:"itrealvalue"`
	StartTime           uint64 `json:"starttime"`
	VSize               uint64 `json:"vsize"`
	RSS                 int64  `json:"rss"`
	ExitSignal          int    `json:"exit_signal"`
	Processor           int    `json:"processor"`
	RTPriority          uint32 `json:"rt_priority"`
	Policy              uint32 `json:"policy"`
	DelayAcctBlkIOTicks uint64 `json:"delayacct_blkio_ticks"`
}

// statSkipped is the number of fields between rss and exit_signal that a
// snapshot does not keep (rsslim through cnswap).
const statSkipped = 13

// ParseStat parses one /proc/<pid>/stat line.
//
// The command name is taken from the first '(' to the last ')', so names
// holding spaces or parentheses survive. delayacct_blkio_ticks is absent on
// kernels before 2.6.18 and reads as zero there. A missing trailing newline
// is tolerated.
func ParseStat(line string) (Stat, error) {
	var (
		st Stat
		c  = cursor{buf: terminated(line), name: "stat"}
	)

	st.PID = c.toInt("pid", c.read("pid", ' ', integerLen))
	if c.err != nil {
		return Stat{}, c.err
	}

	open := strings.IndexByte(c.buf, '(')
	end := strings.LastIndexByte(c.buf, ')')
	if open != c.pos || end < open || end+1 >= len(c.buf) || c.buf[end+1] != ' ' {
		return Stat{}, fmt.Errorf("stat comm: %w", ErrFieldNotFound)
	}
	st.Comm = c.buf[open+1 : end]
	if len(st.Comm) > commLen {
		st.Comm = st.Comm[:commLen]
	}
	c.pos = end + 2

	st.State = c.read("state", ' ', 1)

	num := func(label string) string { return c.read(label, ' ', bigintLen) }

	st.PPID = c.toInt("ppid", c.read("ppid", ' ', integerLen))
	st.PGRP = c.toInt("pgrp", c.read("pgrp", ' ', integerLen))
	st.Session = c.toInt("session", c.read("session", ' ', integerLen))
	st.TTY = c.toInt("tty_nr", c.read("tty_nr", ' ', integerLen))
	st.TPGID = c.toInt("tpgid", c.read("tpgid", ' ', integerLen))
	st.Flags = c.toUint32("flags", c.read("flags", ' ', integerLen))
	st.MinFlt = c.toUint64("minflt", num("minflt"))
	st.CMinFlt = c.toUint64("cminflt", num("cminflt"))
	st.MajFlt = c.toUint64("majflt", num("majflt"))
	st.CMajFlt = c.toUint64("cmajflt", num("cmajflt"))
	st.UTime = c.toUint64("utime", num("utime"))
	st.STime = c.toUint64("stime", num("stime"))
	st.CUTime = c.toInt64("cutime", num("cutime"))
	st.CSTime = c.toInt64("cstime", num("cstime"))
	st.Priority = c.toInt64("priority", num("priority"))
	st.Nice = c.toInt64("nice", num("nice"))
	st.NumThreads = c.toInt64("num_threads", num("num_threads"))
	st.ITRealValue = c.toInt64("itrealvalue", num("itrealvalue"))
	st.StartTime = c.toUint64("starttime", num("starttime"))
	st.VSize = c.toUint64("vsize", num("vsize"))
	st.RSS = c.toInt64("rss", num("rss"))
	if c.err != nil {
		return Stat{}, c.err
	}

	c.skip(statSkipped)

	st.ExitSignal = c.toInt("exit_signal", c.read("exit_signal", ' ', integerLen))
	st.Processor = c.toInt("processor", c.read("processor", ' ', integerLen))
	st.RTPriority = c.toUint32("rt_priority", c.read("rt_priority", ' ', integerLen))
	st.Policy = c.toUint32("policy", c.readLine("policy", integerLen))
	if c.err != nil {
		return Stat{}, c.err
	}
	if !c.atLineEnd() {
		st.DelayAcctBlkIOTicks = c.toUint64("delayacct_blkio_ticks", c.readLine("delayacct_blkio_ticks", bigintLen))
	}
	if c.err != nil {
		return Stat{}, c.err
	}
	return st, nil
}

// Line renders s back into stat format. Fields a snapshot does not keep are
// written as zero, so ParseStat(s.Line()) == s.
func (s Stat) Line() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.PID))
	b.WriteString(" (")
	b.WriteString(s.Comm)
	b.WriteString(") ")
	fmt.Fprintf(&b, "%s %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d %d",
		s.State, s.PPID, s.PGRP, s.Session, s.TTY, s.TPGID, s.Flags,
		s.MinFlt, s.CMinFlt, s.MajFlt, s.CMajFlt, s.UTime, s.STime,
		s.CUTime, s.CSTime, s.Priority, s.Nice, s.NumThreads, s.ITRealValue,
		s.StartTime, s.VSize, s.RSS)
	for range statSkipped {
		b.WriteString(" 0")
	}
	fmt.Fprintf(&b, " %d %d %d %d %d\n",
		s.ExitSignal, s.Processor, s.RTPriority, s.Policy, s.DelayAcctBlkIOTicks)
	return b.String()
}
