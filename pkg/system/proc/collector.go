//go:build linux

package proc

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Resolver maps a uid to an account name.
type Resolver interface {
	Lookup(uid uint32) (string, bool)
}

// Collector turns pid lists into snapshots.
type Collector struct {
	fs       FS
	check    func(root string) error
	resolver Resolver
	workers  int
	log      *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithRoot reads from root instead of DefaultRoot.
func WithRoot(root string) Option {
	return func(c *Collector) { c.fs = NewFS(root) }
}

// WithResolver sets the uid to name lookup. Without one, rows carry no
// username.
func WithResolver(r Resolver) Option {
	return func(c *Collector) { c.resolver = r }
}

// WithWorkers bounds how many pids are read concurrently by Collect.
// Values below 1 mean sequential.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// WithMountCheck replaces the process filesystem check, IsProcFS by
// default. Tests use it to point a Collector at a plain directory.
func WithMountCheck(fn func(root string) error) Option {
	return func(c *Collector) { c.check = fn }
}

// NewCollector returns a Collector reading DefaultRoot sequentially.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		fs:      NewFS(""),
		check:   IsProcFS,
		workers: 1,
		log:     slog.With("component", "proc.Collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check verifies the proc root is a process filesystem.
func (c *Collector) Check() error {
	return c.check(c.fs.Root())
}

// Process reads one row. Only a missing or malformed stat fails the row;
// a missing command line, owner or io file degrades it.
func (c *Collector) Process(pid int) (ProcessSnapshot, error) {
	snap := ProcessSnapshot{UID: -1}

	if cmd, err := c.fs.CmdLine(pid); err == nil {
		snap.CmdLine, snap.HasCmdLine = cmd, true
	}

	if uid, err := c.fs.Owner(pid); err == nil {
		snap.UID = int64(uid)
		if c.resolver != nil {
			snap.Username, snap.HasUsername = c.resolver.Lookup(uid)
		}
	}

	st, err := c.fs.Stat(pid)
	if err != nil {
		return ProcessSnapshot{}, err
	}
	snap.Stat = st

	pio, err := c.fs.IO(pid)
	switch {
	case err == nil:
		snap.IO = pio
	case errors.Is(err, ErrOptionalSourceMissing):
		c.log.Debug("io unavailable, using zeros", "pid", pid, "error", err)
	default:
		return ProcessSnapshot{}, err
	}
	return snap, nil
}

// Collect reads every pid and returns one Result per pid in input order.
// It fails as a whole only when the proc root is unusable or ctx ends.
func (c *Collector) Collect(ctx context.Context, pids []int) ([]Result, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}

	out := make([]Result, len(pids))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, pid := range pids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap, err := c.Process(pid)
			out[i] = Result{PID: pid, Process: snap, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Processes is Collect without the failed rows.
func (c *Collector) Processes(ctx context.Context, pids []int) ([]ProcessSnapshot, error) {
	res, err := c.Collect(ctx, pids)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessSnapshot, 0, len(res))
	for _, r := range res {
		if !r.OK() {
			c.log.Debug("skipping process", "pid", r.PID, "error", r.Err)
			continue
		}
		out = append(out, r.Process)
	}
	return out, nil
}

// All returns a lazy, sequential row sequence. When the proc root is
// unusable it yields that error once and ends; vanished processes are
// skipped. Each range over the sequence reads /proc afresh.
func (c *Collector) All(pids []int) iter.Seq2[ProcessSnapshot, error] {
	return func(yield func(ProcessSnapshot, error) bool) {
		if err := c.Check(); err != nil {
			yield(ProcessSnapshot{}, err)
			return
		}
		for _, pid := range pids {
			snap, err := c.Process(pid)
			if err != nil {
				c.log.Debug("skipping process", "pid", pid, "error", err)
				continue
			}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// LoadAvg returns the system load averages.
func (c *Collector) LoadAvg() (SystemLoad, error) {
	if err := c.Check(); err != nil {
		return SystemLoad{}, err
	}
	return c.fs.LoadAvg()
}

// MemInfo returns the system memory summary.
func (c *Collector) MemInfo() (MemoryUsage, error) {
	if err := c.Check(); err != nil {
		return MemoryUsage{}, err
	}
	return c.fs.MemInfo()
}

// CPUTime returns the aggregate CPU tick counters.
func (c *Collector) CPUTime() (CPUTime, error) {
	if err := c.Check(); err != nil {
		return CPUTime{}, err
	}
	return c.fs.CPUTime()
}

// Snapshot reads the system aggregates and the given pids. Aggregate
// failures fail the cycle; row failures only drop rows.
func (c *Collector) Snapshot(ctx context.Context, pids []int) (Snapshot, error) {
	var (
		s   = Snapshot{Taken: time.Now()}
		err error
	)
	if s.Load, err = c.LoadAvg(); err != nil {
		return Snapshot{}, fmt.Errorf("loadavg: %w", err)
	}
	if s.Memory, err = c.MemInfo(); err != nil {
		return Snapshot{}, fmt.Errorf("meminfo: %w", err)
	}
	if s.CPU, err = c.CPUTime(); err != nil {
		return Snapshot{}, fmt.Errorf("cputime: %w", err)
	}
	if s.Processes, err = c.Processes(ctx, pids); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
