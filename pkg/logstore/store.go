package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tailview/pkg/core"
)

// Store persists ingested log entries in SQLite and answers the time-ranged
// queries the viewer issues. The (ts_ms, raw) unique index mirrors the
// viewer's deduplication key, so re-ingesting a line is harmless.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the entry database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS entries (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_ms   INTEGER NOT NULL,
    service TEXT    NOT NULL,
    raw     TEXT    NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_identity ON entries(ts_ms, raw);
CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts_ms);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts a batch of entries in one transaction. Duplicate identities
// are ignored. Returns the number of rows actually inserted.
func (s *Store) Append(ctx context.Context, entries []core.LogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO entries (ts_ms, service, raw) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.TimestampMs, e.Service, e.Raw)
		if err != nil {
			return 0, fmt.Errorf("insert entry: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return inserted, nil
}

// QueryRange returns entries with ts_ms in [startMs, endMs], ascending by
// timestamp, at most limit rows. When the range holds more matches than
// limit, direction picks which end survives: forward keeps the earliest
// rows, backward the latest. Results are ascending either way.
func (s *Store) QueryRange(ctx context.Context, startMs, endMs int64, limit int, direction core.Direction) ([]core.LogEntry, error) {
	if startMs > endMs {
		return nil, fmt.Errorf("invalid range: start %d after end %d", startMs, endMs)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}

	order := "ASC"
	if direction == core.DirectionBackward {
		order = "DESC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_ms, service, raw FROM entries
		 WHERE ts_ms BETWEEN ? AND ?
		 ORDER BY ts_ms `+order+`, id `+order+` LIMIT ?`,
		startMs, endMs, limit)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var out []core.LogEntry
	for rows.Next() {
		var tsMs int64
		var service, raw string
		if err := rows.Scan(&tsMs, &service, &raw); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, core.NewEntry(tsMs, service, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range: %w", err)
	}

	if direction == core.DirectionBackward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// Prune deletes entries older than the retention horizon and returns the
// number removed. A non-positive retention disables pruning.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	horizon := time.Now().Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE ts_ms < ?`, horizon)
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
