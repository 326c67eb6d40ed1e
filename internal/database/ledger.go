package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/catalogcrawler/internal/model"
)

// FileName is the ledger database file name inside the data directory.
const FileName = "catalogcrawler.db"

// ErrNotFound is returned by Open when the database must exist but does not.
var ErrNotFound = errors.New("ledger database not found")

// Ledger provides SQLite-based storage for session outcomes.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets concurrent
	// sessions record outcomes while history is being read.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dbDir.
func Open(dbDir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

func (l *Ledger) createTables() error {
	schema := `
	-- One row per finished crawl session
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		status TEXT NOT NULL,
		tires INTEGER NOT NULL DEFAULT 0,
		disks INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		outcome_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_run ON sessions(run_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_target ON sessions(target_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Burned proxies replaced during a run
	CREATE TABLE IF NOT EXISTS proxy_exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		from_proxy TEXT NOT NULL,
		to_proxy TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exchanges_run ON proxy_exchanges(run_id);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// RecordSession stores a finished session.
func (l *Ledger) RecordSession(ctx context.Context, o model.SessionOutcome) error {
	outcomeJSON, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to serialize outcome: %w", err)
	}

	query := `
	INSERT INTO sessions (run_id, target_id, status, tires, disks, error, started_at, finished_at, outcome_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = l.db.ExecContext(ctx, query,
		o.RunID,
		o.TargetID,
		string(o.Status),
		o.Tires,
		o.Disks,
		o.Error,
		o.StartedAt.UTC().Format(time.RFC3339Nano),
		o.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(outcomeJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecentSessions returns the latest sessions, newest first.
func (l *Ledger) RecentSessions(ctx context.Context, limit int) ([]model.SessionOutcome, error) {
	return l.querySessions(ctx, `
	SELECT outcome_json FROM sessions
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
}

// TargetHistory returns the latest sessions of one target, newest first.
func (l *Ledger) TargetHistory(ctx context.Context, targetID string, limit int) ([]model.SessionOutcome, error) {
	return l.querySessions(ctx, `
	SELECT outcome_json FROM sessions
	WHERE target_id = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, targetID, limit)
}

// RunSessions returns every session of one run in the order they ended.
func (l *Ledger) RunSessions(ctx context.Context, runID string) ([]model.SessionOutcome, error) {
	return l.querySessions(ctx, `
	SELECT outcome_json FROM sessions
	WHERE run_id = ?
	ORDER BY id
	`, runID)
}

func (l *Ledger) querySessions(ctx context.Context, query string, args ...any) ([]model.SessionOutcome, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	outcomes := make([]model.SessionOutcome, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var o model.SessionOutcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			continue // Skip malformed rows
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Exchange is one recorded proxy replacement.
type Exchange struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	FromProxy string    `json:"from_proxy"`
	ToProxy   string    `json:"to_proxy"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordExchange stores a proxy replacement.
func (l *Ledger) RecordExchange(ctx context.Context, runID, fromProxy, toProxy string) error {
	query := `
	INSERT INTO proxy_exchanges (run_id, from_proxy, to_proxy)
	VALUES (?, ?, ?)
	`
	if _, err := l.db.ExecContext(ctx, query, runID, fromProxy, toProxy); err != nil {
		return fmt.Errorf("failed to record proxy exchange: %w", err)
	}
	return nil
}

// Exchanges returns the proxy replacements of a run, oldest first.
func (l *Ledger) Exchanges(ctx context.Context, runID string) ([]Exchange, error) {
	query := `
	SELECT id, run_id, from_proxy, to_proxy, timestamp
	FROM proxy_exchanges
	WHERE run_id = ?
	ORDER BY id
	`
	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proxy exchanges: %w", err)
	}
	defer rows.Close()

	var results []Exchange
	for rows.Next() {
		var e Exchange
		var timestamp string
		if err := rows.Scan(&e.ID, &e.RunID, &e.FromProxy, &e.ToProxy, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan proxy exchange: %w", err)
		}
		e.Timestamp = parseTimestamp(timestamp)
		results = append(results, e)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries each known format and returns the zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
