// Package session supplies the pid lists a snapshot is taken for.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultQuery lists the backend pids of a PostgreSQL server.
const DefaultQuery = "SELECT pid FROM pg_stat_activity"

var ErrNoQuery = errors.New("session: empty query")

// Source produces pids to sample.
type Source interface {
	PIDs(ctx context.Context) ([]int, error)
}

// Static is a fixed pid list, typically parsed from the command line.
type Static []int

func (s Static) PIDs(context.Context) ([]int, error) {
	return append([]int(nil), s...), nil
}

// Running lists every process currently visible to this host.
type Running struct{}

func (Running) PIDs(ctx context.Context) ([]int, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]int, 0, len(pids))
	for _, p := range pids {
		out = append(out, int(p))
	}
	return out, nil
}

// SQL reads pids from a session registry table. The query must return a
// single integer column; NULL values are skipped.
type SQL struct {
	DB    *sql.DB
	Query string
}

// Open connects to a registry with a registered database/sql driver
// ("postgres" or "sqlite3"). An empty query means DefaultQuery.
func Open(ctx context.Context, driver, dsn, query string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s session registry: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s session registry: %w", driver, err)
	}
	if query == "" {
		query = DefaultQuery
	}
	return &SQL{DB: db, Query: query}, nil
}

func (s *SQL) PIDs(ctx context.Context) ([]int, error) {
	if s.Query == "" {
		return nil, ErrNoQuery
	}
	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []int
	for rows.Next() {
		var pid sql.NullInt64
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scan session pid: %w", err)
		}
		if !pid.Valid || pid.Int64 <= 0 {
			slog.Debug("ignoring session without pid", "component", "session.SQL")
			continue
		}
		out = append(out, int(pid.Int64))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return out, nil
}

// Close releases the registry connection.
func (s *SQL) Close() error {
	return s.DB.Close()
}
