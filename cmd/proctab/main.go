//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/ja7ad/proctab/pkg/config"
	"github.com/ja7ad/proctab/pkg/export/prom"
	"github.com/ja7ad/proctab/pkg/session"
	"github.com/ja7ad/proctab/pkg/store"
	"github.com/ja7ad/proctab/pkg/system/mountinfo"
	"github.com/ja7ad/proctab/pkg/system/proc"
	"github.com/ja7ad/proctab/pkg/system/users"
	"github.com/ja7ad/proctab/pkg/system/util"
)

type opts struct {
	configPath string
	procRoot   string
	workers    int
	logLevel   string

	all           bool
	sessionDriver string
	sessionDSN    string
	sessionQuery  string

	pretty     bool
	jsonPath   string
	csvPath    string
	sqlitePath string

	port int
}

var cfg *config.Config

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "proctab [PID|PID..PID]...",
		Short: "Point-in-time process and system resource snapshots from /proc",
		Long: `The proctab tool reads /proc once and reports, for each requested process,
its scheduling and accounting state (stat), I/O counters (io), command line
and owner, together with the system load, memory and CPU time.

Processes that exit while being read are left out of the report. Rates and
deltas are left to the caller: run proctab again and compare.

* GitHub: https://github.com/ja7ad/proctab

Examples:
  proctab $(pidof postgres)
  proctab --json - 1 100..120
  proctab --all --sqlite /var/lib/proctab/latest.db
  proctab --sessions-dsn "postgres://monitor@localhost/postgres?sslmode=disable"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(cmd, o)
			cfg = c
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, o, args)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&o.procRoot, "proc-root", "", "read the process filesystem from this path (default $HOST_PROC or /proc)")
	pf.IntVarP(&o.workers, "workers", "w", 1, "processes read concurrently")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	f := root.Flags()
	f.BoolVarP(&o.all, "all", "a", false, "report every running process")
	f.StringVar(&o.sessionDriver, "sessions-driver", "postgres", "session registry driver: postgres, sqlite3")
	f.StringVar(&o.sessionDSN, "sessions-dsn", "", "read pids from a session registry at this DSN")
	f.StringVar(&o.sessionQuery, "sessions-query", "", "query returning one pid column (default "+session.DefaultQuery+")")
	f.BoolVar(&o.pretty, "pretty", true, "format output as a table instead of CSV-like lines")
	f.StringVar(&o.jsonPath, "json", "", "write the snapshot as JSON to a file (- for stdout)")
	f.StringVar(&o.csvPath, "csv", "", "write process rows to a CSV file")
	f.StringVar(&o.sqlitePath, "sqlite", "", "replace the snapshot stored in this SQLite database")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Expose snapshots as Prometheus metrics",
		Long: `Serve takes a fresh snapshot on every scrape. Pids come from the session
registry when one is configured, otherwise from every running process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	serve.Flags().IntVarP(&o.port, "port", "p", 0, "listen port (default from config, 9464)")
	serve.Flags().StringVar(&o.sessionDriver, "sessions-driver", "postgres", "session registry driver: postgres, sqlite3")
	serve.Flags().StringVar(&o.sessionDSN, "sessions-dsn", "", "read pids from a session registry at this DSN")
	serve.Flags().StringVar(&o.sessionQuery, "sessions-query", "", "query returning one pid column")

	root.AddCommand(
		systemCommand("loadavg", "Show the system load averages", func(col *proc.Collector) (any, error) { return col.LoadAvg() }),
		systemCommand("memusage", "Show system memory usage", func(col *proc.Collector) (any, error) { return col.MemInfo() }),
		systemCommand("cputime", "Show aggregate CPU time", func(col *proc.Collector) (any, error) { return col.CPUTime() }),
		serve,
		&cobra.Command{
			Use:   "mounts",
			Short: "List where process filesystems are mounted",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return runMounts(cfg)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration, applies explicitly set flags on top of it
// and installs the default logger.
func setup(cmd *cobra.Command, o opts) (*config.Config, error) {
	var file io.Reader
	if o.configPath != "" {
		f, err := os.Open(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		file = f
	}

	cfg, err := config.LoadConfig(file)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("proc-root") {
		cfg.ProcRoot = o.procRoot
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if changed("sessions-driver") {
		cfg.Sessions.Driver = o.sessionDriver
	}
	if changed("sessions-dsn") {
		cfg.Sessions.DSN = o.sessionDSN
	}
	if changed("sessions-query") {
		cfg.Sessions.Query = o.sessionQuery
	}
	if changed("sqlite") {
		cfg.Store.Path = o.sqlitePath
	}
	if changed("port") {
		cfg.Prometheus.Port = o.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lvl, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return cfg, nil
}

func newCollector(cfg *config.Config) *proc.Collector {
	col, _ := newCollectorWithCache(cfg)
	return col
}

func newCollectorWithCache(cfg *config.Config) (*proc.Collector, *users.Cache) {
	cache := users.NewCache(cfg.Identity.CacheSize, cfg.Identity.CacheTTL, users.System)
	return proc.NewCollector(
		proc.WithRoot(cfg.ProcRoot),
		proc.WithWorkers(cfg.Workers),
		proc.WithResolver(cache),
	), cache
}

// pidSource picks where pids come from: arguments first, then --all, then
// the session registry. The returned close func is never nil.
func pidSource(ctx context.Context, cfg *config.Config, all bool, args []string) (session.Source, func(), error) {
	noop := func() {}
	switch {
	case len(args) > 0:
		pids, err := util.ParsePIDs(args)
		if err != nil {
			return nil, noop, err
		}
		return session.Static(pids), noop, nil
	case all:
		return session.Running{}, noop, nil
	case cfg.Sessions.Enabled():
		src, err := session.Open(ctx, cfg.Sessions.Driver, cfg.Sessions.DSN, cfg.Sessions.Query)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { _ = src.Close() }, nil
	}
	return nil, noop, errors.New("no PIDs provided (pass PIDs, --all or --sessions-dsn)")
}

func run(ctx context.Context, cfg *config.Config, o opts, args []string) error {
	src, closeSrc, err := pidSource(ctx, cfg, o.all, args)
	if err != nil {
		return err
	}
	defer closeSrc()

	pids, err := src.PIDs(ctx)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return errors.New("session registry returned no PIDs")
	}

	col, cache := newCollectorWithCache(cfg)
	snap, err := col.Snapshot(ctx, pids)
	if err != nil {
		return err
	}
	slog.Debug("snapshot taken", "requested", len(pids), "rows", len(snap.Processes), "owners", cache.Len())

	if cfg.Store.Path != "" {
		if err := writeStore(ctx, cfg.Store.Path, snap); err != nil {
			return err
		}
	}
	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, snap.Processes); err != nil {
			return err
		}
	}
	if o.jsonPath != "" {
		return writeJSON(o.jsonPath, snap)
	}

	host, kernel, cpus, mem := util.SystemSummary()
	fmt.Printf(_console, host, kernel, cpus, mem, snap.Taken.Format("2006-01-02 15:04:05"))
	if o.pretty {
		printTable(os.Stdout, snap)
	} else {
		printCsvLike(os.Stdout, snap.Processes)
	}
	return nil
}

func writeStore(ctx context.Context, path string, snap proc.Snapshot) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()
	if err := st.Write(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	slog.Info("snapshot stored", "path", path, "rows", len(snap.Processes))
	return nil
}

func systemCommand(use, short string, read func(*proc.Collector) (any, error)) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print as JSON")
	cmd.RunE = func(*cobra.Command, []string) error {
		v, err := read(newCollector(cfg))
		if err != nil {
			return err
		}
		if jsonOut {
			return encodeJSON(os.Stdout, v)
		}
		printRecord(os.Stdout, v)
		return nil
	}
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	var (
		src      session.Source = session.Running{}
		closeSrc                = func() {}
		err      error
	)
	if cfg.Sessions.Enabled() {
		src, closeSrc, err = pidSource(ctx, cfg, false, nil)
		if err != nil {
			return err
		}
	}
	defer closeSrc()

	col := newCollector(cfg)
	if err := col.Check(); err != nil {
		return err
	}
	return prom.Serve(ctx, cfg.Prometheus.Port, cfg.Prometheus.Path, prom.NewExporter(col, src))
}

func runMounts(cfg *config.Config) error {
	root := cfg.ProcRoot
	if root == "" {
		root = proc.DefaultRoot()
	}
	ms, err := mountinfo.Read(root)
	if err != nil {
		return err
	}
	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "MOUNT POINT\tSOURCE\tOPTIONS")
	for _, m := range mountinfo.ByType(ms, "proc") {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.MountPoint, m.Source, m.Options)
	}
	return tw.Flush()
}

const _console = `proctab - Process Resource Snapshot Tool

* GitHub: https://github.com/ja7ad/proctab

       Host: %s
       Kernel: %s
       CPUs: %s
       Mem: %s

Snapshot as of %s:

`
