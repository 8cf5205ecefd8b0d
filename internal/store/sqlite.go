package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/vid-companion/internal/domain"
	_ "modernc.org/sqlite"
)

// defaultRecentLimit bounds RecentExchanges when the caller passes limit <= 0.
const defaultRecentLimit = 50

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLite creates a new SQLite-backed journal at dbPath.
// The special path ":memory:" opens a private in-memory database.
func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// WAL mode lets the bridge read while the controller writes.
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL DEFAULT '',
		reply TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		preempted INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, finished_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_finished ON exchanges(finished_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordExchange inserts one exchange record, retrying briefly when the database is locked.
func (j *SQLiteJournal) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex == nil || ex.ID == "" {
		return fmt.Errorf("record exchange: missing id")
	}
	return withBusyRetry(ctx, "record exchange", func() error {
		return j.insertExchange(ctx, ex)
	})
}

func (j *SQLiteJournal) insertExchange(ctx context.Context, ex *domain.Exchange) error {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	query := `
	INSERT INTO exchanges (id, kind, session_id, query, reply, outcome, error, preempted, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_id = excluded.session_id,
		reply = excluded.reply,
		outcome = excluded.outcome,
		error = excluded.error,
		preempted = excluded.preempted,
		finished_at = excluded.finished_at`

	_, err := j.db.ExecContext(ctx, query,
		ex.ID, string(ex.Kind), ex.SessionID, ex.Query, ex.Reply,
		string(ex.Outcome), ex.Error, ex.Preempted,
		ex.StartedAt.UnixMilli(), ex.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns the newest records first.
func (j *SQLiteJournal) RecentExchanges(ctx context.Context, sessionID string, limit int) ([]*domain.Exchange, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `
		SELECT id, kind, session_id, query, reply, outcome, error, preempted, started_at, finished_at
		FROM exchanges`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY finished_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	var out []*domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		var kind, outcome string
		var startedAt, finishedAt int64

		if err := rows.Scan(
			&ex.ID, &kind, &ex.SessionID, &ex.Query, &ex.Reply,
			&outcome, &ex.Error, &ex.Preempted, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}

		ex.Kind = domain.ExchangeKind(kind)
		ex.Outcome = domain.ExchangeOutcome(outcome)
		ex.StartedAt = time.UnixMilli(startedAt)
		ex.FinishedAt = time.UnixMilli(finishedAt)
		out = append(out, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	return out, nil
}

// PruneBefore deletes records that finished before cutoff.
func (j *SQLiteJournal) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withBusyRetry(ctx, "prune exchanges", func() error {
		j.writeMu.Lock()
		defer j.writeMu.Unlock()

		result, err := j.db.ExecContext(ctx, `DELETE FROM exchanges WHERE finished_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("delete exchanges: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// isConflictError reports SQLITE_BUSY and "database is locked" errors, both of
// which warrant a retry.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs fn with exponential backoff (50ms, 100ms, 200ms) on lock conflicts.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !isConflictError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("Journal write hit a locked database, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, err)
}
