// Package store keeps the latest snapshot in a SQLite database so other
// tools can query it with plain SQL. Each Write replaces the previous
// snapshot.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ja7ad/proctab/pkg/system/proc"
	"github.com/ja7ad/proctab/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS proctab (
	pid                   INTEGER PRIMARY KEY,
	comm                  TEXT NOT NULL,
	state                 TEXT NOT NULL,
	ppid                  INTEGER NOT NULL,
	pgrp                  INTEGER NOT NULL,
	session               INTEGER NOT NULL,
	tty_nr                INTEGER NOT NULL,
	tpgid                 INTEGER NOT NULL,
	flags                 INTEGER NOT NULL,
	minflt                INTEGER NOT NULL,
	cminflt               INTEGER NOT NULL,
	majflt                INTEGER NOT NULL,
	cmajflt               INTEGER NOT NULL,
	utime                 INTEGER NOT NULL,
	stime                 INTEGER NOT NULL,
	cutime                INTEGER NOT NULL,
	cstime                INTEGER NOT NULL,
	priority              INTEGER NOT NULL,
	nice                  INTEGER NOT NULL,
	num_threads           INTEGER NOT NULL,
	itrealvalue           INTEGER NOT NULL,
	starttime             INTEGER NOT NULL,
	vsize                 INTEGER NOT NULL,
	rss                   INTEGER NOT NULL,
	exit_signal           INTEGER NOT NULL,
	processor             INTEGER NOT NULL,
	rt_priority           INTEGER NOT NULL,
	policy                INTEGER NOT NULL,
	delayacct_blkio_ticks INTEGER NOT NULL,
	rchar                 INTEGER NOT NULL,
	wchar                 INTEGER NOT NULL,
	syscr                 INTEGER NOT NULL,
	syscw                 INTEGER NOT NULL,
	read_bytes            INTEGER NOT NULL,
	write_bytes           INTEGER NOT NULL,
	cancelled_write_bytes INTEGER NOT NULL,
	cmdline               TEXT,
	uid                   INTEGER NOT NULL,
	username              TEXT
);
CREATE TABLE IF NOT EXISTS loadavg (
	taken    DATETIME NOT NULL,
	load1    REAL NOT NULL,
	load5    REAL NOT NULL,
	load15   REAL NOT NULL,
	last_pid INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS memusage (
	taken      DATETIME NOT NULL,
	memtotal   INTEGER NOT NULL,
	memused    INTEGER NOT NULL,
	memfree    INTEGER NOT NULL,
	memshared  INTEGER NOT NULL,
	membuffers INTEGER NOT NULL,
	memcached  INTEGER NOT NULL,
	swaptotal  INTEGER NOT NULL,
	swapused   INTEGER NOT NULL,
	swapfree   INTEGER NOT NULL,
	swapcached INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cputime (
	taken  DATETIME NOT NULL,
	user   INTEGER NOT NULL,
	nice   INTEGER NOT NULL,
	system INTEGER NOT NULL,
	idle   INTEGER NOT NULL,
	iowait INTEGER NOT NULL
);`

const insertProcess = `INSERT OR REPLACE INTO proctab (
	pid, comm, state, ppid, pgrp, session, tty_nr, tpgid, flags,
	minflt, cminflt, majflt, cmajflt, utime, stime, cutime, cstime,
	priority, nice, num_threads, itrealvalue, starttime, vsize, rss,
	exit_signal, processor, rt_priority, policy, delayacct_blkio_ticks,
	rchar, wchar, syscr, syscw, read_bytes, write_bytes, cancelled_write_bytes,
	cmdline, uid, username
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// counter writes a kernel counter into a signed INTEGER column. Values of
// 2^63 and above are stored as their two's complement and read back by
// scanCounter unchanged.
type counter uint64

func (v counter) Value() (driver.Value, error) { return int64(v), nil }

type counterDest struct{ dst *uint64 }

func scanCounter(dst *uint64) counterDest { return counterDest{dst: dst} }

func (d counterDest) Scan(src any) error {
	v, ok := src.(int64)
	if !ok {
		return fmt.Errorf("counter column holds %T, want int64", src)
	}
	*d.dst = uint64(v)
	return nil
}

// Store is a SQLite snapshot sink.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write replaces the stored snapshot with snap in one transaction.
func (s *Store) Write(ctx context.Context, snap proc.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"proctab", "loadavg", "memusage", "cputime"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	l := snap.Load
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO loadavg (taken, load1, load5, load15, last_pid) VALUES (?, ?, ?, ?, ?)",
		snap.Taken, l.Load1, l.Load5, l.Load15, l.LastPID); err != nil {
		return fmt.Errorf("insert loadavg: %w", err)
	}

	m := snap.Memory
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO memusage (taken, memtotal, memused, memfree, memshared, membuffers, memcached,
			swaptotal, swapused, swapfree, swapcached) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Taken, counter(m.MemTotal), counter(m.MemUsed), counter(m.MemFree), counter(m.MemShared),
		counter(m.MemBuffers), counter(m.MemCached), counter(m.SwapTotal), counter(m.SwapUsed),
		counter(m.SwapFree), counter(m.SwapCached)); err != nil {
		return fmt.Errorf("insert memusage: %w", err)
	}

	c := snap.CPU
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO cputime (taken, user, nice, system, idle, iowait) VALUES (?, ?, ?, ?, ?, ?)",
		snap.Taken, counter(c.User), counter(c.Nice), counter(c.System), counter(c.Idle), counter(c.IOWait)); err != nil {
		return fmt.Errorf("insert cputime: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertProcess)
	if err != nil {
		return fmt.Errorf("prepare proctab insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, p := range snap.Processes {
		if _, err = stmt.ExecContext(ctx, processArgs(p)...); err != nil {
			return fmt.Errorf("insert pid %d: %w", p.PID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func processArgs(p proc.ProcessSnapshot) []any {
	var cmdline, username sql.NullString
	if p.HasCmdLine {
		cmdline = sql.NullString{String: p.CmdLine, Valid: true}
	}
	if p.HasUsername {
		username = sql.NullString{String: p.Username, Valid: true}
	}
	return []any{
		p.PID, p.Comm, p.State, p.PPID, p.PGRP, p.Session, p.TTY, p.TPGID, p.Flags,
		counter(p.MinFlt), counter(p.CMinFlt), counter(p.MajFlt), counter(p.CMajFlt),
		counter(p.UTime), counter(p.STime), p.CUTime, p.CSTime,
		p.Priority, p.Nice, p.NumThreads, p.ITRealValue, counter(p.StartTime), counter(p.VSize), p.RSS,
		p.ExitSignal, p.Processor, p.RTPriority, p.Policy, counter(p.DelayAcctBlkIOTicks),
		counter(p.RChar), counter(p.WChar), counter(p.SyscR), counter(p.SyscW),
		counter(p.ReadBytes), counter(p.WriteBytes), counter(p.CancelledWriteBytes),
		cmdline, p.UID, username,
	}
}

// Processes returns the stored rows ordered by pid.
func (s *Store) Processes(ctx context.Context) ([]proc.ProcessSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		pid, comm, state, ppid, pgrp, session, tty_nr, tpgid, flags,
		minflt, cminflt, majflt, cmajflt, utime, stime, cutime, cstime,
		priority, nice, num_threads, itrealvalue, starttime, vsize, rss,
		exit_signal, processor, rt_priority, policy, delayacct_blkio_ticks,
		rchar, wchar, syscr, syscw, read_bytes, write_bytes, cancelled_write_bytes,
		cmdline, uid, username
		FROM proctab ORDER BY pid`)
	if err != nil {
		return nil, fmt.Errorf("query proctab: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []proc.ProcessSnapshot
	for rows.Next() {
		var (
			p                 proc.ProcessSnapshot
			cmdline, username sql.NullString
		)
		if err := rows.Scan(
			&p.PID, &p.Comm, &p.State, &p.PPID, &p.PGRP, &p.Session, &p.TTY, &p.TPGID, &p.Flags,
			scanCounter(&p.MinFlt), scanCounter(&p.CMinFlt), scanCounter(&p.MajFlt), scanCounter(&p.CMajFlt),
			scanCounter(&p.UTime), scanCounter(&p.STime), &p.CUTime, &p.CSTime,
			&p.Priority, &p.Nice, &p.NumThreads, &p.ITRealValue, scanCounter(&p.StartTime), scanCounter(&p.VSize), &p.RSS,
			&p.ExitSignal, &p.Processor, &p.RTPriority, &p.Policy, scanCounter(&p.DelayAcctBlkIOTicks),
			scanCounter(&p.RChar), scanCounter(&p.WChar), scanCounter(&p.SyscR), scanCounter(&p.SyscW),
			scanCounter(&p.ReadBytes), scanCounter(&p.WriteBytes), scanCounter(&p.CancelledWriteBytes),
			&cmdline, &p.UID, &username,
		); err != nil {
			return nil, fmt.Errorf("scan proctab: %w", err)
		}
		p.CmdLine, p.HasCmdLine = cmdline.String, cmdline.Valid
		p.Username, p.HasUsername = username.String, username.Valid
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read proctab: %w", err)
	}
	return out, nil
}

// System returns the stored aggregates and when they were taken.
// sql.ErrNoRows means nothing has been written yet.
func (s *Store) System(ctx context.Context) (proc.Snapshot, error) {
	var snap proc.Snapshot
	l := &snap.Load
	if err := s.db.QueryRowContext(ctx,
		"SELECT taken, load1, load5, load15, last_pid FROM loadavg").
		Scan(&snap.Taken, &l.Load1, &l.Load5, &l.Load15, &l.LastPID); err != nil {
		return proc.Snapshot{}, fmt.Errorf("query loadavg: %w", err)
	}

	var mem [10]uint64
	if err := s.db.QueryRowContext(ctx,
		`SELECT memtotal, memused, memfree, memshared, membuffers, memcached,
			swaptotal, swapused, swapfree, swapcached FROM memusage`).
		Scan(scanCounter(&mem[0]), scanCounter(&mem[1]), scanCounter(&mem[2]), scanCounter(&mem[3]),
			scanCounter(&mem[4]), scanCounter(&mem[5]), scanCounter(&mem[6]), scanCounter(&mem[7]),
			scanCounter(&mem[8]), scanCounter(&mem[9])); err != nil {
		return proc.Snapshot{}, fmt.Errorf("query memusage: %w", err)
	}
	m := &snap.Memory
	for i, dst := range []*types.Kilobytes{
		&m.MemTotal, &m.MemUsed, &m.MemFree, &m.MemShared, &m.MemBuffers, &m.MemCached,
		&m.SwapTotal, &m.SwapUsed, &m.SwapFree, &m.SwapCached,
	} {
		*dst = types.Kilobytes(mem[i])
	}

	c := &snap.CPU
	if err := s.db.QueryRowContext(ctx,
		"SELECT user, nice, system, idle, iowait FROM cputime").
		Scan(scanCounter(&c.User), scanCounter(&c.Nice), scanCounter(&c.System),
			scanCounter(&c.Idle), scanCounter(&c.IOWait)); err != nil {
		return proc.Snapshot{}, fmt.Errorf("query cputime: %w", err)
	}
	return snap, nil
}
