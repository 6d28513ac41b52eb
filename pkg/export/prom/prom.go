//go:build linux

// Package prom exposes snapshots as Prometheus metrics. Every scrape takes
// one fresh snapshot; nothing is kept between scrapes.
package prom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ja7ad/proctab/pkg/session"
	"github.com/ja7ad/proctab/pkg/system/proc"
)

const namespace = "proctab"

var processLabels = []string{"pid", "comm", "username"}

func log() *slog.Logger {
	return slog.With("component", "prom.Exporter")
}

// Exporter is a prometheus.Collector over a proc.Collector.
type Exporter struct {
	col      *proc.Collector
	src      session.Source
	timeout  time.Duration
	pageSize int
	clkTck   int

	scrapeErrors prometheus.Counter

	up          *prometheus.Desc
	load        *prometheus.Desc
	lastPID     *prometheus.Desc
	memory      *prometheus.Desc
	swap        *prometheus.Desc
	cpuTicks    *prometheus.Desc
	procs       *prometheus.Desc
	procCPU     *prometheus.Desc
	procRSS     *prometheus.Desc
	procVSize   *prometheus.Desc
	procThreads *prometheus.Desc
	procIO      *prometheus.Desc
	procFaults  *prometheus.Desc
	procStart   *prometheus.Desc
}

// NewExporter builds an Exporter that samples the pids src returns.
func NewExporter(col *proc.Collector, src session.Source) *Exporter {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Exporter{
		col:      col,
		src:      src,
		timeout:  10 * time.Second,
		pageSize: proc.PageSize(),
		clkTck:   proc.ClockTicks(),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Scrapes that failed to read system aggregates or the pid source.",
		}),
		up:          desc("up", "1 when the process filesystem could be read."),
		load:        desc("load_average", "System load average over the given window.", "window"),
		lastPID:     desc("last_pid", "Most recently assigned process id."),
		memory:      desc("memory_bytes", "System memory from /proc/meminfo.", "kind"),
		swap:        desc("swap_bytes", "System swap from /proc/meminfo.", "kind"),
		cpuTicks:    desc("cpu_ticks_total", "Aggregate CPU time in clock ticks.", "mode"),
		procs:       desc("processes", "Processes sampled in this scrape."),
		procCPU:     desc("process_cpu_seconds_total", "Process CPU time.", append(processLabels, "mode")...),
		procRSS:     desc("process_resident_memory_bytes", "Process resident set size.", processLabels...),
		procVSize:   desc("process_virtual_memory_bytes", "Process virtual memory size.", processLabels...),
		procThreads: desc("process_threads", "Process thread count.", processLabels...),
		procIO:      desc("process_io_bytes_total", "Process storage I/O.", append(processLabels, "direction")...),
		procFaults:  desc("process_page_faults_total", "Process page faults.", append(processLabels, "kind")...),
		procStart:   desc("process_start_ticks", "Process start time in clock ticks after boot.", processLabels...),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.scrapeErrors.Describe(ch)
	for _, d := range []*prometheus.Desc{
		e.up, e.load, e.lastPID, e.memory, e.swap, e.cpuTicks, e.procs,
		e.procCPU, e.procRSS, e.procVSize, e.procThreads, e.procIO, e.procFaults, e.procStart,
	} {
		ch <- d
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	defer e.scrapeErrors.Collect(ch)

	if err := e.col.Check(); err != nil {
		log().Warn("process filesystem unavailable", "error", err)
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 0)
		e.scrapeErrors.Inc()
		return
	}
	ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 1)

	if err := e.collectSystem(ch); err != nil {
		log().Warn("reading system aggregates", "error", err)
		e.scrapeErrors.Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	pids, err := e.src.PIDs(ctx)
	if err != nil {
		log().Warn("listing pids", "error", err)
		e.scrapeErrors.Inc()
		return
	}
	rows, err := e.col.Processes(ctx, pids)
	if err != nil {
		log().Warn("collecting processes", "error", err)
		e.scrapeErrors.Inc()
		return
	}
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.PID]; dup {
			continue
		}
		seen[r.PID] = struct{}{}
		e.collectProcess(ch, r)
	}
	ch <- prometheus.MustNewConstMetric(e.procs, prometheus.GaugeValue, float64(len(seen)))
}

func (e *Exporter) collectSystem(ch chan<- prometheus.Metric) error {
	var errs []error

	if l, err := e.col.LoadAvg(); err == nil {
		ch <- prometheus.MustNewConstMetric(e.load, prometheus.GaugeValue, l.Load1, "1m")
		ch <- prometheus.MustNewConstMetric(e.load, prometheus.GaugeValue, l.Load5, "5m")
		ch <- prometheus.MustNewConstMetric(e.load, prometheus.GaugeValue, l.Load15, "15m")
		ch <- prometheus.MustNewConstMetric(e.lastPID, prometheus.GaugeValue, float64(l.LastPID))
	} else {
		errs = append(errs, err)
	}

	if m, err := e.col.MemInfo(); err == nil {
		for kind, v := range map[string]uint64{
			"total":   m.MemTotal.Bytes().Uint64(),
			"used":    m.MemUsed.Bytes().Uint64(),
			"free":    m.MemFree.Bytes().Uint64(),
			"shared":  m.MemShared.Bytes().Uint64(),
			"buffers": m.MemBuffers.Bytes().Uint64(),
			"cached":  m.MemCached.Bytes().Uint64(),
		} {
			ch <- prometheus.MustNewConstMetric(e.memory, prometheus.GaugeValue, float64(v), kind)
		}
		for kind, v := range map[string]uint64{
			"total":  m.SwapTotal.Bytes().Uint64(),
			"used":   m.SwapUsed.Bytes().Uint64(),
			"free":   m.SwapFree.Bytes().Uint64(),
			"cached": m.SwapCached.Bytes().Uint64(),
		} {
			ch <- prometheus.MustNewConstMetric(e.swap, prometheus.GaugeValue, float64(v), kind)
		}
	} else {
		errs = append(errs, err)
	}

	if c, err := e.col.CPUTime(); err == nil {
		for mode, v := range map[string]uint64{
			"user":   c.User,
			"nice":   c.Nice,
			"system": c.System,
			"idle":   c.Idle,
			"iowait": c.IOWait,
		} {
			ch <- prometheus.MustNewConstMetric(e.cpuTicks, prometheus.CounterValue, float64(v), mode)
		}
	} else {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Exporter) collectProcess(ch chan<- prometheus.Metric, p proc.ProcessSnapshot) {
	labels := []string{strconv.Itoa(p.PID), labelValue(p.Comm), labelValue(p.Username)}
	with := func(extra string) []string { return append(labels[:len(labels):len(labels)], extra) }
	tick := float64(e.clkTck)

	ch <- prometheus.MustNewConstMetric(e.procCPU, prometheus.CounterValue, float64(p.UTime)/tick, with("user")...)
	ch <- prometheus.MustNewConstMetric(e.procCPU, prometheus.CounterValue, float64(p.STime)/tick, with("system")...)
	ch <- prometheus.MustNewConstMetric(e.procRSS, prometheus.GaugeValue, float64(p.RSSBytes(e.pageSize)), labels...)
	ch <- prometheus.MustNewConstMetric(e.procVSize, prometheus.GaugeValue, float64(p.VSize), labels...)
	ch <- prometheus.MustNewConstMetric(e.procThreads, prometheus.GaugeValue, float64(p.NumThreads), labels...)
	ch <- prometheus.MustNewConstMetric(e.procIO, prometheus.CounterValue, float64(p.ReadBytes), with("read")...)
	ch <- prometheus.MustNewConstMetric(e.procIO, prometheus.CounterValue, float64(p.WriteBytes), with("write")...)
	ch <- prometheus.MustNewConstMetric(e.procFaults, prometheus.CounterValue, float64(p.MinFlt), with("minor")...)
	ch <- prometheus.MustNewConstMetric(e.procFaults, prometheus.CounterValue, float64(p.MajFlt), with("major")...)
	ch <- prometheus.MustNewConstMetric(e.procStart, prometheus.GaugeValue, float64(p.StartTime), labels...)
}

// labelValue makes s a valid label value. Process names are arbitrary bytes
// (prctl PR_SET_NAME) while label values must be UTF-8.
func labelValue(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Serve registers exp on a fresh registry and serves it on port/path until
// ctx is done.
func Serve(ctx context.Context, port int, path string, exp *Exporter) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(exp)

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	l := log().With("port", port, "path", path)
	go func() {
		<-ctx.Done()
		if err := server.Close(); err != nil {
			l.Warn("error closing HTTP server", "error", err)
		}
	}()

	l.Info("opening prometheus scrape endpoint")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
