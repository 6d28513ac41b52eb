//go:build linux

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/ja7ad/proctab/pkg/system/proc"
	"github.com/ja7ad/proctab/pkg/system/util"
	"github.com/ja7ad/proctab/pkg/types"
)

var csvHeader = []string{
	"pid", "comm", "state", "ppid", "uid", "username", "threads",
	"utime", "stime", "cpu_sec", "vsize", "rss_bytes", "minflt", "majflt",
	"read_bytes", "write_bytes", "rchar", "wchar", "cmdline",
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTable(w io.Writer, snap proc.Snapshot) {
	tw := newTable(w)
	printTableHeader(tw)
	pageSize, clkTck := proc.PageSize(), proc.ClockTicks()
	for _, p := range snap.Processes {
		printTableRow(tw, p, pageSize, clkTck)
	}
	_ = tw.Flush()

	l, m, c := snap.Load, snap.Memory, snap.CPU
	fmt.Fprintln(w)
	fmt.Fprintf(w, "load average: %.2f, %.2f, %.2f (last pid %d)\n", l.Load1, l.Load5, l.Load15, l.LastPID)
	fmt.Fprintf(w, "memory:       %s used / %s total, %s swap used\n",
		m.MemUsed.Humanized(), m.MemTotal.Humanized(), m.SwapUsed.Humanized())
	fmt.Fprintf(w, "cpu ticks:    user %d, nice %d, system %d, idle %d, iowait %d (total %d)\n",
		c.User, c.Nice, c.System, c.Idle, c.IOWait, c.Total())
}

func printTableHeader(tw *tabwriter.Writer) {
	fmt.Fprintln(tw, "PID\tUSER\tS\tTHR\tCPU (s)\tRSS\tVSZ\tREAD\tWRITE\tCOMMAND")
	fmt.Fprintln(tw, "---\t----\t-\t---\t-------\t---\t---\t----\t-----\t-------")
}

func printTableRow(tw *tabwriter.Writer, p proc.ProcessSnapshot, pageSize, clkTck int) {
	user := p.Username
	if !p.HasUsername {
		user = strconv.FormatInt(p.UID, 10)
	}
	command := p.Comm
	if p.HasCmdLine && p.CmdLine != "" {
		command = p.CmdLine
	}
	fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\t%s\t%s\t%d\t%d\t%s\n",
		p.PID, user, p.State, p.NumThreads, p.CPUSeconds(clkTck),
		p.RSSBytes(pageSize).Humanized(), types.Bytes(p.VSize).Humanized(),
		p.ReadBytes, p.WriteBytes, command,
	)
}

func printCsvLike(w io.Writer, rows []proc.ProcessSnapshot) {
	fmt.Fprintln(w, "# pid, comm, state, ppid, threads, utime, stime, rss, read_bytes, write_bytes")
	for _, p := range rows {
		fmt.Fprintf(w, "%d, %q, %s, %d, %d, %d, %d, %d, %d, %d\n",
			p.PID, p.Comm, p.State, p.PPID, p.NumThreads, p.UTime, p.STime, p.RSS, p.ReadBytes, p.WriteBytes)
	}
}

func printRecord(w io.Writer, v any) {
	tw := newTable(w)
	defer func() {
		_ = tw.Flush()
	}()
	switch r := v.(type) {
	case proc.SystemLoad:
		fmt.Fprintln(tw, "LOAD1\tLOAD5\tLOAD15\tLAST PID")
		fmt.Fprintf(tw, "%.2f\t%.2f\t%.2f\t%d\n", r.Load1, r.Load5, r.Load15, r.LastPID)
	case proc.MemoryUsage:
		fmt.Fprintln(tw, "\tTOTAL\tUSED\tFREE\tSHARED\tBUFFERS\tCACHED")
		fmt.Fprintf(tw, "Mem:\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.MemTotal, r.MemUsed, r.MemFree, r.MemShared, r.MemBuffers, r.MemCached)
		fmt.Fprintf(tw, "Swap:\t%d\t%d\t%d\t\t\t%d\n", r.SwapTotal, r.SwapUsed, r.SwapFree, r.SwapCached)
	case proc.CPUTime:
		fmt.Fprintln(tw, "USER\tNICE\tSYSTEM\tIDLE\tIOWAIT\tTOTAL")
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n", r.User, r.Nice, r.System, r.Idle, r.IOWait, r.Total())
	default:
		fmt.Fprintf(tw, "%+v\n", r)
	}
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func writeCSV(path string, rows []proc.ProcessSnapshot) error {
	f, err := create(path)
	if err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	pageSize, clkTck := proc.PageSize(), proc.ClockTicks()
	w := csv.NewWriter(f)
	_ = w.Write(csvHeader)
	for _, p := range rows {
		_ = w.Write([]string{
			strconv.Itoa(p.PID), p.Comm, p.State, strconv.Itoa(p.PPID),
			strconv.FormatInt(p.UID, 10), p.Username, strconv.FormatInt(p.NumThreads, 10),
			strconv.FormatUint(p.UTime, 10), strconv.FormatUint(p.STime, 10),
			util.FmtFloat(p.CPUSeconds(clkTck)),
			strconv.FormatUint(p.VSize, 10),
			strconv.FormatUint(p.RSSBytes(pageSize).Uint64(), 10),
			strconv.FormatUint(p.MinFlt, 10), strconv.FormatUint(p.MajFlt, 10),
			strconv.FormatUint(p.ReadBytes, 10), strconv.FormatUint(p.WriteBytes, 10),
			strconv.FormatUint(p.RChar, 10), strconv.FormatUint(p.WChar, 10),
			p.CmdLine,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

func writeJSON(path string, snap proc.Snapshot) error {
	if path == "-" {
		return encodeJSON(os.Stdout, snap)
	}
	f, err := create(path)
	if err != nil {
		return fmt.Errorf("json: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return encodeJSON(f, snap)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
