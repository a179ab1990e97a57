// Package ledger keeps a history of runs and digest deliveries in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Delivery status values.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped" // dry run
)

// Ledger records every run and each digest it delivered.
type Ledger struct {
	db *sql.DB
}

// Run is one invocation of the notifier.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	WindowAfter time.Time
	WindowUntil time.Time
	FirstRun    bool
	DryRun      bool
	Status      string
	Subscribers int
	Digests     int
	Albums      int
	Sent        int
	Failed      int
	Error       string
}

// Delivery is the outcome of one digest.
type Delivery struct {
	ID        int64
	RunID     string
	Recipient string
	Artists   int
	Albums    int
	Status    string
	Error     string
	CreatedAt time.Time
}

// Open opens or creates the ledger database at path. ":memory:" gives a
// private in-memory ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			window_after INTEGER NOT NULL,
			window_until INTEGER NOT NULL,
			first_run BOOLEAN NOT NULL DEFAULT 0,
			dry_run BOOLEAN NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			subscribers INTEGER NOT NULL DEFAULT 0,
			digests INTEGER NOT NULL DEFAULT 0,
			albums INTEGER NOT NULL DEFAULT 0,
			sent INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT
		);

		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			recipient TEXT NOT NULL,
			artists INTEGER NOT NULL,
			albums INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_deliveries_run ON deliveries(run_id);
	`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// BeginRun inserts run with status running.
func (l *Ledger) BeginRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO runs (id, started_at, window_after, window_until, first_run, dry_run, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UnixMilli(),
		run.WindowAfter.UnixMilli(),
		run.WindowUntil.UnixMilli(),
		run.FirstRun,
		run.DryRun,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordDelivery appends a delivery outcome to its run.
func (l *Ledger) RecordDelivery(ctx context.Context, d Delivery) error {
	query := `
		INSERT INTO deliveries (run_id, recipient, artists, albums, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, query,
		d.RunID,
		d.Recipient,
		d.Artists,
		d.Albums,
		d.Status,
		nullString(d.Error),
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (l *Ledger) FinishRun(ctx context.Context, run Run) error {
	query := `
		UPDATE runs
		SET finished_at = ?, status = ?, subscribers = ?, digests = ?, albums = ?,
			sent = ?, failed = ?, error = ?
		WHERE id = ?
	`

	finishedAt := run.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	result, err := l.db.ExecContext(ctx, query,
		finishedAt.UnixMilli(),
		run.Status,
		run.Subscribers,
		run.Digests,
		run.Albums,
		run.Sent,
		run.Failed,
		nullString(run.Error),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run with id %s not found", run.ID)
	}

	return nil
}

// Recent returns up to limit runs, newest first. A limit of 0 returns all.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, COALESCE(finished_at, 0), window_after, window_until,
			first_run, dry_run, status, subscribers, digests, albums, sent, failed,
			COALESCE(error, '')
		FROM runs
		ORDER BY started_at DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedMs, finishedMs, afterMs, untilMs int64

		err := rows.Scan(
			&r.ID,
			&startedMs,
			&finishedMs,
			&afterMs,
			&untilMs,
			&r.FirstRun,
			&r.DryRun,
			&r.Status,
			&r.Subscribers,
			&r.Digests,
			&r.Albums,
			&r.Sent,
			&r.Failed,
			&r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.StartedAt = time.UnixMilli(startedMs)
		if finishedMs > 0 {
			r.FinishedAt = time.UnixMilli(finishedMs)
		}
		r.WindowAfter = time.UnixMilli(afterMs)
		r.WindowUntil = time.UnixMilli(untilMs)

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Deliveries returns the deliveries of one run in the order they were recorded.
func (l *Ledger) Deliveries(ctx context.Context, runID string) ([]Delivery, error) {
	query := `
		SELECT id, run_id, recipient, artists, albums, status, COALESCE(error, ''), created_at
		FROM deliveries
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var createdMs int64

		if err := rows.Scan(&d.ID, &d.RunID, &d.Recipient, &d.Artists, &d.Albums, &d.Status, &d.Error, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		d.CreatedAt = time.UnixMilli(createdMs)

		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
