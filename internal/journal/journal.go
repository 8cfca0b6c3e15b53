// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package journal persists plugin lifecycle events in SQLite so that
// installs and removals can be audited after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Action is a recorded lifecycle step.
type Action string

const (
	ActionLoad       Action = "load"
	ActionLoadFailed Action = "load-failed"
	ActionInstall    Action = "install"
	ActionUpdate     Action = "update"
	ActionUninstall  Action = "uninstall"
	ActionDownload   Action = "download"
	ActionClean      Action = "clean"
)

// Entry is one journal row.
type Entry struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	Plugin    string    `json:"plugin"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal handles database operations
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// Serialize writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS plugin_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		plugin TEXT NOT NULL,
		detail TEXT,
		error TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plugin_events_plugin ON plugin_events(plugin);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Record appends an entry. A nil Journal discards it.
func (j *Journal) Record(ctx context.Context, action Action, plugin, detail string, cause error) error {
	if j == nil {
		return nil
	}
	var errMsg string
	if cause != nil {
		errMsg = cause.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO plugin_events (action, plugin, detail, error, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(action), plugin, detail, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// Query selects journal entries. Zero fields do not filter.
type Query struct {
	Plugin string
	Action Action
	Limit  int
}

// Search returns matching entries, newest first.
func (j *Journal) Search(ctx context.Context, q Query) ([]Entry, error) {
	query := "SELECT id, action, plugin, detail, error, timestamp FROM plugin_events WHERE 1=1"
	args := []any{}

	if q.Plugin != "" {
		query += " AND plugin = ?"
		args = append(args, q.Plugin)
	}
	if q.Action != "" {
		query += " AND action = ?"
		args = append(args, string(q.Action))
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var action string
		var detail, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &action, &e.Plugin, &detail, &errMsg, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Action = Action(action)
		e.Detail = detail.String
		e.Error = errMsg.String
		results = append(results, e)
	}
	return results, rows.Err()
}

// Prune deletes entries older than the cutoff and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM plugin_events WHERE timestamp < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
