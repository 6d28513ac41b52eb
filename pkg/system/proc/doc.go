// Package proc reads point-in-time resource snapshots from the Linux
// process filesystem.
//
// # Overview
//
//   - Parsers (portable, pure functions over file contents):
//     ParseStat     : /proc/<pid>/stat, one line of positional fields
//     ParseIO       : /proc/<pid>/io, seven labelled counters in fixed order
//     ParseLoadAvg  : /proc/loadavg
//     ParseMemInfo  : /proc/meminfo, labelled lines in any order
//     ParseCPUTime  : the aggregate "cpu" line of /proc/stat
//
//   - FS: opens files below a proc root (HOST_PROC or /proc) and feeds them
//     to the parsers. It never keeps a handle between calls.
//
//   - Collector: assembles ProcessSnapshot rows for a list of pids and
//     exposes the three system aggregates. Every entry point first checks
//     that the root is a process filesystem (statfs magic 0x9fa0).
//
// # Errors
//
//	ErrInterfaceUnavailable   : proc root missing or not procfs; the batch fails
//	ErrRowUnavailable         : one pid vanished or its stat is malformed; the row is skipped
//	ErrFieldNotFound          : a delimiter or label was missing; wrapped by the above for rows
//	ErrOptionalSourceMissing  : io, cmdline or owner unreadable; the row degrades
//
// # Kernel differences
//
// The last field of a stat line (delayacct_blkio_ticks) and of loadavg
// (last pid) may or may not be followed by more fields depending on the
// kernel. Such fields are read up to the next space when one occurs before
// the end of the line, and up to the newline otherwise. A stat line that
// ends after policy reads delayacct_blkio_ticks as zero.
//
// Example:
//
//	col := proc.NewCollector(proc.WithWorkers(4), proc.WithResolver(users.NewCache(256, time.Minute, users.System)))
//	rows, err := col.Processes(ctx, []int{1, os.Getpid()})
//	if err != nil {
//	    return err // proc root unusable
//	}
//	for _, r := range rows {
//	    fmt.Println(r.PID, r.Comm, r.State, r.RSSBytes(proc.PageSize()).Humanized())
//	}
package proc
